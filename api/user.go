package api

import (
	"strconv"

	"expensehub/models"
	"expensehub/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户管理处理器
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler 创建用户管理处理器
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	Page      int         `form:"page" example:"1"`
	Limit     int         `form:"limit" example:"10"`
	Role      models.Role `form:"role" binding:"omitempty,oneof=user editor admin"`
	Search    string      `form:"search" example:"ali"`
	SortBy    string      `form:"sortBy" example:"createdAt"`
	SortOrder string      `form:"sortOrder" example:"desc"`
}

// UpdateUserRequest 管理员修改用户
type UpdateUserRequest struct {
	Username *string      `json:"username" binding:"omitempty,notblank,min=3,max=50"`
	Email    *string      `json:"email" binding:"omitempty,email"`
	Role     *models.Role `json:"role" binding:"omitempty,oneof=user editor admin"`
}

// ChangePasswordRequest 修改密码，管理员代改时可不填原密码
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// UserListResponse 用户列表
type UserListResponse struct {
	Users      []models.User      `json:"users"`
	Pagination PaginationResponse `json:"pagination"`
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "Invalid id.")
		return 0, false
	}
	return uint(id), true
}

// List 用户列表
// @Summary 用户列表
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param role query string false "角色"
// @Param search query string false "用户名或邮箱"
// @Success 200 {object} Response{data=UserListResponse}
// @Failure 403 {object} Response "权限不足"
// @Router /api/v1/users [get]
func (h *UserHandler) List(c *gin.Context) {
	var req UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BindError(c, err)
		return
	}
	users, page, err := h.users.List(c.Request.Context(), currentActor(c), service.UserFilter{
		Role:   req.Role,
		Search: req.Search,
		PageQuery: service.PageQuery{
			Page: req.Page, Limit: req.Limit, SortBy: req.SortBy, SortOrder: req.SortOrder,
		},
	})
	if err != nil {
		RespondError(c, err, "Server error while fetching users.")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	Success(c, UserListResponse{Users: users, Pagination: newPagination(page, "totalUsers")})
}

// Get 查看用户
// @Summary 查看用户
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response{data=models.User}
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/v1/users/profile/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		RespondError(c, err, "Server error while fetching user.")
		return
	}
	Success(c, user)
}

// Update 管理员修改用户
// @Summary 修改用户
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body UpdateUserRequest true "修改内容"
// @Success 200 {object} Response{data=models.User}
// @Failure 409 {object} Response "用户名或邮箱已被占用"
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	user, err := h.users.Update(c.Request.Context(), currentActor(c), id, service.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		RespondError(c, err, "Server error while updating user.")
		return
	}
	SuccessWithMessage(c, "User updated successfully!", user)
}

// Delete 管理员删除用户
// @Summary 删除用户
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response "不能删除自己"
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		RespondError(c, err, "Server error while deleting user.")
		return
	}
	SuccessWithMessage(c, "User deleted successfully!", nil)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body ChangePasswordRequest true "密码"
// @Success 200 {object} Response
// @Failure 400 {object} Response "原密码错误"
// @Router /api/v1/users/profile/{id}/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), currentActor(c), id, req.CurrentPassword, req.NewPassword); err != nil {
		RespondError(c, err, "Server error while changing password.")
		return
	}
	SuccessWithMessage(c, "Password changed successfully!", nil)
}

// Stats 用户统计
// @Summary 用户统计
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.UserStats}
// @Router /api/v1/users/admin/stats [get]
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.users.Stats(c.Request.Context(), currentActor(c))
	if err != nil {
		RespondError(c, err, "Server error while fetching user statistics.")
		return
	}
	Success(c, stats)
}
