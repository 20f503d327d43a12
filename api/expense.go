package api

import (
	"expensehub/models"
	"expensehub/service"

	"github.com/gin-gonic/gin"
)

// ExpenseHandler 报销单处理器
type ExpenseHandler struct {
	expenses *service.ExpenseService
}

// NewExpenseHandler 创建报销单处理器
func NewExpenseHandler(expenses *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

// CreateExpenseRequest 新建报销单
type CreateExpenseRequest struct {
	Subject            string                    `json:"subject" binding:"required,notblank,max=200" example:"Flight to Berlin"`
	Description        string                    `json:"description" binding:"omitempty,max=1000"`
	Amount             float64                   `json:"amount" binding:"required,gt=0" example:"450.00"`
	Currency           string                    `json:"currency" binding:"omitempty,currency" example:"USD"`
	CategoryID         uint                      `json:"categoryId" binding:"required" example:"1"`
	Tags               []string                  `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	IsRecurring        bool                      `json:"isRecurring"`
	RecurringFrequency models.RecurringFrequency `json:"recurringFrequency" binding:"omitempty,oneof=weekly monthly quarterly yearly"`
	Receipt            *models.Receipt           `json:"receipt"`
}

// UpdateExpenseRequest 部分更新，status 仅 admin/editor 可改
type UpdateExpenseRequest struct {
	Subject            *string                    `json:"subject" binding:"omitempty,notblank,max=200"`
	Description        *string                    `json:"description" binding:"omitempty,max=1000"`
	Amount             *float64                   `json:"amount" binding:"omitempty,gt=0"`
	Currency           *string                    `json:"currency" binding:"omitempty,currency"`
	CategoryID         *uint                      `json:"categoryId" binding:"omitempty,gt=0"`
	Tags               *[]string                  `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	IsRecurring        *bool                      `json:"isRecurring"`
	RecurringFrequency *models.RecurringFrequency `json:"recurringFrequency" binding:"omitempty,oneof=weekly monthly quarterly yearly"`
	Receipt            *models.Receipt            `json:"receipt"`
	Status             *models.ExpenseStatus      `json:"status" binding:"omitempty,oneof=Draft Submitted Approved Rejected Paid"`
}

// SubmitExpenseRequest 提交审批，approverId 为空时自动分配
type SubmitExpenseRequest struct {
	ApproverID *uint           `json:"approverId" binding:"omitempty,gt=0"`
	Priority   models.Priority `json:"priority" binding:"omitempty,oneof=Low Medium High Urgent" example:"Medium"`
}

// ExpenseListRequest 列表查询参数
type ExpenseListRequest struct {
	Page       int                  `form:"page" example:"1"`
	Limit      int                  `form:"limit" example:"10"`
	Status     models.ExpenseStatus `form:"status" binding:"omitempty,oneof=Draft Submitted Approved Rejected Paid"`
	CategoryID uint                 `form:"category"`
	SortBy     string               `form:"sortBy" example:"submittedAt"`
	SortOrder  string               `form:"sortOrder" example:"desc"`
}

// ExpenseListResponse 报销单列表
type ExpenseListResponse struct {
	Expenses   []models.Expense   `json:"expenses"`
	Pagination PaginationResponse `json:"pagination"`
}

// SubmitExpenseResponse 提交结果
type SubmitExpenseResponse struct {
	Expense  *models.Expense  `json:"expense"`
	Approval *models.Approval `json:"approval"`
}

// List 本人的报销单
// @Summary 报销单列表
// @Tags 报销单
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param status query string false "状态"
// @Param category query int false "类别ID"
// @Param sortBy query string false "排序字段" default(submittedAt)
// @Param sortOrder query string false "asc/desc" default(desc)
// @Success 200 {object} Response{data=ExpenseListResponse}
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	var req ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BindError(c, err)
		return
	}
	list, page, err := h.expenses.List(c.Request.Context(), currentActor(c), service.ExpenseFilter{
		Status:     req.Status,
		CategoryID: req.CategoryID,
		PageQuery: service.PageQuery{
			Page: req.Page, Limit: req.Limit, SortBy: req.SortBy, SortOrder: req.SortOrder,
		},
	})
	if err != nil {
		RespondError(c, err, "Server error while fetching expenses.")
		return
	}
	Success(c, ExpenseListResponse{Expenses: list, Pagination: newPagination(page, "totalExpenses")})
}

// Get 查看报销单
// @Summary 查看报销单
// @Tags 报销单
// @Produce json
// @Security BearerAuth
// @Param id path int true "报销单ID"
// @Success 200 {object} Response{data=models.Expense}
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "报销单不存在"
// @Router /api/v1/expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := h.expenses.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		RespondError(c, err, "Server error while fetching expense.")
		return
	}
	Success(c, e)
}

// Create 新建草稿
// @Summary 新建报销单
// @Tags 报销单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateExpenseRequest true "报销单"
// @Success 201 {object} Response{data=models.Expense}
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	e, err := h.expenses.Create(c.Request.Context(), currentActor(c), service.ExpenseInput{
		Subject:            req.Subject,
		Description:        req.Description,
		Amount:             req.Amount,
		Currency:           req.Currency,
		CategoryID:         req.CategoryID,
		Tags:               models.Tags(req.Tags),
		IsRecurring:        req.IsRecurring,
		RecurringFrequency: req.RecurringFrequency,
		Receipt:            req.Receipt,
	})
	if err != nil {
		RespondError(c, err, "Server error while creating expense.")
		return
	}
	Created(c, "Expense created successfully!", e)
}

// Update 修改报销单
// @Summary 修改报销单
// @Description 审批结束的报销单不可编辑；状态按转移表修改，仅 admin/editor
// @Tags 报销单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "报销单ID"
// @Param request body UpdateExpenseRequest true "修改内容"
// @Success 200 {object} Response{data=models.Expense}
// @Failure 400 {object} Response "状态不允许"
// @Failure 403 {object} Response "无权修改"
// @Router /api/v1/expenses/{id} [put]
func (h *ExpenseHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	in := service.ExpenseUpdate{
		Subject:            req.Subject,
		Description:        req.Description,
		Amount:             req.Amount,
		Currency:           req.Currency,
		CategoryID:         req.CategoryID,
		IsRecurring:        req.IsRecurring,
		RecurringFrequency: req.RecurringFrequency,
		Receipt:            req.Receipt,
		Status:             req.Status,
	}
	if req.Tags != nil {
		tags := models.Tags(*req.Tags)
		in.Tags = &tags
	}
	e, err := h.expenses.Update(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		RespondError(c, err, "Server error while updating expense.")
		return
	}
	SuccessWithMessage(c, "Expense updated successfully!", e)
}

// Delete 删除报销单
// @Summary 删除报销单
// @Tags 报销单
// @Produce json
// @Security BearerAuth
// @Param id path int true "报销单ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response "只能删除草稿"
// @Router /api/v1/expenses/{id} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.expenses.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		RespondError(c, err, "Server error while deleting expense.")
		return
	}
	SuccessWithMessage(c, "Expense deleted successfully!", nil)
}

// Submit 提交审批
// @Summary 提交审批
// @Tags 报销单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "报销单ID"
// @Param request body SubmitExpenseRequest false "审批人与优先级"
// @Success 200 {object} Response{data=SubmitExpenseResponse}
// @Failure 400 {object} Response "只能提交草稿"
// @Router /api/v1/expenses/{id}/submit [post]
func (h *ExpenseHandler) Submit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SubmitExpenseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
			return
		}
	}
	e, a, err := h.expenses.Submit(c.Request.Context(), currentActor(c), id, service.SubmitInput{
		ApproverID: req.ApproverID,
		Priority:   req.Priority,
	})
	if err != nil {
		RespondError(c, err, "Server error while submitting expense.")
		return
	}
	SuccessWithMessage(c, "Expense submitted for approval successfully!", SubmitExpenseResponse{Expense: e, Approval: a})
}

// Stats 本人统计
// @Summary 报销统计
// @Tags 报销单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.ExpenseStats}
// @Router /api/v1/expenses/stats [get]
func (h *ExpenseHandler) Stats(c *gin.Context) {
	stats, err := h.expenses.Stats(c.Request.Context(), currentActor(c))
	if err != nil {
		RespondError(c, err, "Server error while fetching statistics.")
		return
	}
	Success(c, stats)
}
