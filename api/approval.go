package api

import (
	"expensehub/models"
	"expensehub/service"

	"github.com/gin-gonic/gin"
)

// ApprovalHandler 审批处理器
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler 创建审批处理器
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// ApprovalListRequest 待审批查询参数
type ApprovalListRequest struct {
	Page      int             `form:"page" example:"1"`
	Limit     int             `form:"limit" example:"10"`
	Priority  models.Priority `form:"priority" binding:"omitempty,oneof=Low Medium High Urgent"`
	SortBy    string          `form:"sortBy" example:"dueDate"`
	SortOrder string          `form:"sortOrder" example:"asc"`
}

// ApproveRequest 审批意见可选
type ApproveRequest struct {
	Comments string `json:"comments" binding:"max=1000" example:"Looks good"`
}

// RejectRequest 驳回原因必填
type RejectRequest struct {
	Comments string `json:"comments" binding:"required,notblank,max=1000" example:"Missing receipt"`
}

// DelegateRequest 委托
type DelegateRequest struct {
	DelegateTo uint   `json:"delegateTo" binding:"required" example:"5"`
	Reason     string `json:"reason" binding:"required,notblank,max=500" example:"On vacation"`
}

// ApprovalListResponse 审批列表
type ApprovalListResponse struct {
	Approvals  []models.Approval  `json:"approvals"`
	Pagination PaginationResponse `json:"pagination"`
}

// OverdueResponse 逾期列表
type OverdueResponse struct {
	Approvals []models.Approval `json:"approvals"`
	Count     int               `json:"count"`
}

// ListPending 我的待审批
// @Summary 待审批列表
// @Tags 审批
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Param priority query string false "优先级"
// @Param sortBy query string false "排序字段" default(dueDate)
// @Param sortOrder query string false "asc/desc" default(asc)
// @Success 200 {object} Response{data=ApprovalListResponse}
// @Router /api/v1/approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	var req ApprovalListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BindError(c, err)
		return
	}
	list, page, err := h.approvals.ListPending(c.Request.Context(), currentActor(c), service.ApprovalFilter{
		Priority: req.Priority,
		PageQuery: service.PageQuery{
			Page: req.Page, Limit: req.Limit, SortBy: req.SortBy, SortOrder: req.SortOrder,
		},
	})
	if err != nil {
		RespondError(c, err, "Server error while fetching approvals.")
		return
	}
	Success(c, ApprovalListResponse{Approvals: list, Pagination: newPagination(page, "totalApprovals")})
}

// Get 查看审批
// @Summary 查看审批
// @Tags 审批
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批ID"
// @Success 200 {object} Response{data=models.Approval}
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "审批不存在"
// @Router /api/v1/approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.approvals.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		RespondError(c, err, "Server error while fetching approval.")
		return
	}
	Success(c, a)
}

// Approve 通过
// @Summary 审批通过
// @Tags 审批
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批ID"
// @Param request body ApproveRequest false "审批意见"
// @Success 200 {object} Response{data=models.Approval}
// @Failure 400 {object} Response "已处理"
// @Failure 403 {object} Response "非审批人"
// @Router /api/v1/approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
			return
		}
	}
	a, err := h.approvals.Approve(c.Request.Context(), currentActor(c), id, req.Comments)
	if err != nil {
		RespondError(c, err, "Server error while approving expense.")
		return
	}
	SuccessWithMessage(c, "Expense approved successfully!", a)
}

// Reject 驳回
// @Summary 审批驳回
// @Tags 审批
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批ID"
// @Param request body RejectRequest true "驳回原因"
// @Success 200 {object} Response{data=models.Approval}
// @Failure 400 {object} Response "缺少原因或已处理"
// @Router /api/v1/approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Rejection reason is required.")
		return
	}
	a, err := h.approvals.Reject(c.Request.Context(), currentActor(c), id, req.Comments)
	if err != nil {
		RespondError(c, err, "Server error while rejecting expense.")
		return
	}
	SuccessWithMessage(c, "Expense rejected successfully!", a)
}

// Delegate 委托
// @Summary 委托审批
// @Tags 审批
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批ID"
// @Param request body DelegateRequest true "委托信息"
// @Success 200 {object} Response{data=models.Approval}
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/approvals/{id}/delegate [post]
func (h *ApprovalHandler) Delegate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req DelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	a, err := h.approvals.Delegate(c.Request.Context(), currentActor(c), id, req.DelegateTo, req.Reason)
	if err != nil {
		RespondError(c, err, "Server error while delegating approval.")
		return
	}
	SuccessWithMessage(c, "Approval delegated successfully!", a)
}

// Stats 审批统计
// @Summary 审批统计
// @Tags 审批
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.ApprovalStats}
// @Router /api/v1/approvals/stats [get]
func (h *ApprovalHandler) Stats(c *gin.Context) {
	stats, err := h.approvals.Stats(c.Request.Context(), currentActor(c))
	if err != nil {
		RespondError(c, err, "Server error while fetching statistics.")
		return
	}
	Success(c, stats)
}

// ListOverdue 管理员查看逾期审批
// @Summary 逾期审批
// @Tags 审批
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=OverdueResponse}
// @Failure 403 {object} Response "需要管理员权限"
// @Router /api/v1/approvals/admin/overdue [get]
func (h *ApprovalHandler) ListOverdue(c *gin.Context) {
	list, err := h.approvals.ListOverdue(c.Request.Context(), currentActor(c))
	if err != nil {
		RespondError(c, err, "Server error while fetching overdue approvals.")
		return
	}
	Success(c, OverdueResponse{Approvals: list, Count: len(list)})
}

// SendReminders 发送逾期提醒
// @Summary 发送逾期提醒
// @Tags 审批
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.ReminderResult}
// @Failure 403 {object} Response "需要管理员权限"
// @Router /api/v1/approvals/admin/send-reminders [post]
func (h *ApprovalHandler) SendReminders(c *gin.Context) {
	result, err := h.approvals.SendReminders(c.Request.Context(), currentActor(c))
	if err != nil {
		RespondError(c, err, "Server error while sending reminders.")
		return
	}
	SuccessWithMessage(c, "Reminders processed.", result)
}
