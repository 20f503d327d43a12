package api

import (
	"fmt"

	"expensehub/models"
	"expensehub/service"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 费用类别
type CategoryHandler struct {
	categories *service.CategoryService
}

func NewCategoryHandler(categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=50" example:"Parking"`
	Description string `json:"description" binding:"omitempty,max=255" example:"Car parks and tolls"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,notblank,max=50"`
	Description *string `json:"description" binding:"omitempty,max=255"`
	IsActive    *bool   `json:"isActive"`
}

// CategoryListResponse 类别列表
type CategoryListResponse struct {
	Categories []models.Category `json:"categories"`
}

// List 类别列表，按名称排序
// @Summary 类别列表
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param includeInactive query bool false "包含已停用类别"
// @Success 200 {object} Response{data=CategoryListResponse}
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"
	list, err := h.categories.List(c.Request.Context(), includeInactive)
	if err != nil {
		RespondError(c, err, "Server error while fetching categories.")
		return
	}
	if list == nil {
		list = []models.Category{}
	}
	Success(c, CategoryListResponse{Categories: list})
}

// Get 查看类别
// @Summary 查看类别
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Success 200 {object} Response{data=models.Category}
// @Failure 404 {object} Response "类别不存在"
// @Router /api/v1/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cat, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err, "Server error while fetching category.")
		return
	}
	Success(c, cat)
}

// Create 新建类别
// @Summary 新建类别
// @Tags 类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "类别信息"
// @Success 201 {object} Response{data=models.Category}
// @Failure 409 {object} Response "类别已存在"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), currentActor(c), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondError(c, err, "Server error while creating category.")
		return
	}
	Created(c, "Category created successfully!", cat)
}

// Update 修改类别
// @Summary 修改类别
// @Tags 类别
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Param request body CategoryUpdateRequest true "修改内容"
// @Success 200 {object} Response{data=models.Category}
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), currentActor(c), id, service.CategoryUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		RespondError(c, err, "Server error while updating category.")
		return
	}
	SuccessWithMessage(c, "Category updated successfully!", cat)
}

// Delete 删除类别，被引用时返回 IN_USE
// @Summary 删除类别
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Param id path int true "类别ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response "类别被引用"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		RespondError(c, err, "Server error while deleting category.")
		return
	}
	SuccessWithMessage(c, "Category deleted successfully!", nil)
}

// SeedDefaults 写入默认类别，已存在的跳过
// @Summary 初始化默认类别
// @Tags 类别
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=CategoryListResponse}
// @Router /api/v1/categories/seed-defaults [post]
func (h *CategoryHandler) SeedDefaults(c *gin.Context) {
	created, err := h.categories.SeedDefaults(c.Request.Context(), currentActor(c))
	if err != nil {
		RespondError(c, err, "Server error while seeding categories.")
		return
	}
	SuccessWithMessage(c, fmt.Sprintf("%d default categories created successfully!", len(created)),
		CategoryListResponse{Categories: created})
}
