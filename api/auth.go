package api

import (
	"time"

	"expensehub/middleware"
	"expensehub/models"
	"expensehub/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	auth     *service.AuthService
	tokenTTL time.Duration
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(auth *service.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, tokenTTL: tokenTTL}
}

// RegisterRequest 注册请求，密码由系统生成并发送到邮箱
type RegisterRequest struct {
	Username string      `json:"username" binding:"required,notblank,min=3,max=50" example:"alice"`
	Email    string      `json:"email" binding:"required,email" example:"alice@example.com"`
	Role     models.Role `json:"role" binding:"omitempty,oneof=user editor admin" example:"user"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"alice@example.com"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ForgotPasswordRequest 找回密码请求
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email" example:"alice@example.com"`
}

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required,notblank"`
	NewPassword string `json:"newPassword" binding:"required,min=6" example:"newpass123"`
}

// UpdateProfileRequest 修改个人资料
type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,notblank,min=3,max=50" example:"alice"`
	Email    *string `json:"email" binding:"omitempty,email" example:"alice@example.com"`
}

// Register 注册
// @Summary 注册
// @Description 创建用户并将临时密码发送到邮箱；只有管理员可以创建 editor/admin
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 201 {object} Response{data=models.PublicUser} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 403 {object} Response "无权分配角色"
// @Failure 409 {object} Response "用户名或邮箱已存在"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	var caller *service.Actor
	if middleware.GetCurrentUserID(c) != 0 {
		actor := currentActor(c)
		caller = &actor
	}

	user, err := h.auth.Register(c.Request.Context(), caller, service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		RespondError(c, err, "Server error while creating user.")
		return
	}
	Created(c, "User created successfully! A temporary password has been sent to the email.", user)
}

// Login 登录
// @Summary 登录
// @Description 邮箱密码登录，返回 Bearer token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Failure 429 {object} Response "尝试过于频繁"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err, "Server error during login.")
		return
	}

	token, err := middleware.GenerateToken(user, h.tokenTTL)
	if err != nil {
		RespondError(c, err, "Server error during login.")
		return
	}
	SuccessWithMessage(c, "Login successful!", LoginResponse{Token: token, User: user})
}

// ForgotPassword 找回密码
// @Summary 找回密码
// @Description 无论邮箱是否存在都返回相同结果
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "邮箱"
// @Success 200 {object} Response "已发送"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		RespondError(c, err, "Server error during password reset request.")
		return
	}
	SuccessWithMessage(c, "If the email exists, a password reset link has been sent.", nil)
}

// ResetPassword 重置密码
// @Summary 重置密码
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "令牌与新密码"
// @Success 200 {object} Response "重置成功"
// @Failure 400 {object} Response "令牌无效或已过期"
// @Router /api/v1/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondError(c, err, "Server error during password reset.")
		return
	}
	SuccessWithMessage(c, "Password reset successful!", nil)
}

// GetProfile 当前用户资料
// @Summary 当前用户资料
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User}
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.auth.GetProfile(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		RespondError(c, err, "Server error while fetching profile.")
		return
	}
	Success(c, user)
}

// UpdateProfile 修改当前用户资料
// @Summary 修改个人资料
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "用户名或邮箱"
// @Success 200 {object} Response{data=models.User}
// @Failure 409 {object} Response "用户名或邮箱已被占用"
// @Router /api/v1/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), middleware.GetCurrentUserID(c), service.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		RespondError(c, err, "Server error while updating profile.")
		return
	}
	SuccessWithMessage(c, "Profile updated successfully!", user)
}
