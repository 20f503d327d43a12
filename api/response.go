package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"expensehub/config"
	"expensehub/logger"
	"expensehub/middleware"
	"expensehub/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Response 通用响应结构，出错时 Error 为机器可读的错误码
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginationResponse 分页信息，总数字段名随资源变化，如 totalExpenses
type PaginationResponse map[string]interface{}

func newPagination(p service.Pagination, totalKey string) PaginationResponse {
	return PaginationResponse{
		"currentPage": p.CurrentPage,
		"totalPages":  p.TotalPages,
		totalKey:      p.Total,
		"hasNextPage": p.HasNextPage,
		"hasPrevPage": p.HasPrevPage,
	}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: message,
		Data:    data,
	})
}

// Created 201 响应
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, status int, code service.Kind, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: message,
		Error:   string(code),
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, service.KindValidation, message)
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:   http.StatusBadRequest,
	service.KindInvalidState: http.StatusBadRequest,
	service.KindInUse:        http.StatusBadRequest,
	service.KindInvalidToken: http.StatusBadRequest,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindForbidden:    http.StatusForbidden,
	service.KindNotFound:     http.StatusNotFound,
	service.KindConflict:     http.StatusConflict,
}

// RespondError 按错误类别输出状态码，非业务错误统一 500 且 release 下隐藏详情
func RespondError(c *gin.Context, err error, fallback string) {
	kind := service.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		Error(c, status, kind, err.Error())
		return
	}
	slog.Error(fallback,
		"path", c.FullPath(),
		"request_id", middleware.GetRequestID(c),
		logger.Err(err))
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, service.KindServer, config.SafeErrorMessage(err, fallback))
}

// BindError 请求体校验失败
func BindError(c *gin.Context, err error) {
	BadRequest(c, bindErrorMessage(err))
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return config.SafeErrorMessage(err, "Invalid request body.")
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return "Please provide a valid email address."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long.", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long.", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", field, fe.Param())
	case "currency":
		return "Currency must be a 3-letter code."
	}
	return fmt.Sprintf("%s is invalid.", field)
}

// currentActor 由 JWTAuth 设置
func currentActor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: middleware.GetCurrentUserID(c),
		Role:   middleware.GetCurrentRole(c),
	}
}
