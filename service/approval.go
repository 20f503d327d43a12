package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"expensehub/logger"
	"expensehub/models"

	"gorm.io/gorm"
)

// ApprovalService 审批流
type ApprovalService struct {
	db      *gorm.DB
	mailer  Mailer
	dueDays int
	now     func() time.Time
}

func NewApprovalService(db *gorm.DB, mailer Mailer, dueDays int) *ApprovalService {
	if dueDays <= 0 {
		dueDays = 3
	}
	return &ApprovalService{db: db, mailer: mailer, dueDays: dueDays, now: time.Now}
}

// ApprovalFilter 待审批列表筛选
type ApprovalFilter struct {
	Priority models.Priority
	PageQuery
}

// ApprovalStats 审批统计
type ApprovalStats struct {
	TotalApprovals int64 `json:"totalApprovals"`
	PendingCount   int64 `json:"pendingCount"`
	ApprovedCount  int64 `json:"approvedCount"`
	RejectedCount  int64 `json:"rejectedCount"`
	OverdueCount   int64 `json:"overdueCount"`
}

// ReminderResult 逾期提醒执行结果
type ReminderResult struct {
	Reminded  int `json:"reminded"`
	Escalated int `json:"escalated"`
	Failed    int `json:"failed"`
}

var approvalSortFields = map[string]string{
	"dueDate":   "due_date",
	"createdAt": "created_at",
	"priority":  "priority",
}

func (s *ApprovalService) load(ctx context.Context, tx *gorm.DB, id uint) (*models.Approval, error) {
	var a models.Approval
	if err := tx.WithContext(ctx).First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("Approval not found.")
		}
		return nil, fmt.Errorf("load approval %d: %w", id, err)
	}
	return &a, nil
}

func canProcess(actor Actor, a *models.Approval) bool {
	return a.ApproverID == actor.UserID || actor.IsAdmin()
}

// open 为刚提交的报销单创建待审批记录，需在提交事务内调用
func (s *ApprovalService) open(ctx context.Context, tx *gorm.DB, e *models.Expense, in SubmitInput) (*models.Approval, error) {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, Validation("Invalid priority.")
	}

	approverID, err := s.resolveApprover(ctx, tx, e.OwnerID, in.ApproverID)
	if err != nil {
		return nil, err
	}

	a := models.Approval{
		ExpenseID:   e.ID,
		RequestedBy: e.OwnerID,
		ApproverID:  approverID,
		Status:      models.ApprovalPending,
		Priority:    priority,
		DueDate:     s.now().AddDate(0, 0, s.dueDays),
	}
	if err := tx.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, fmt.Errorf("create approval: %w", err)
	}
	return &a, nil
}

// resolveApprover 指定审批人需为 editor/admin 且不是本人；
// 未指定时选择待审批最少的 editor/admin
func (s *ApprovalService) resolveApprover(ctx context.Context, tx *gorm.DB, ownerID uint, requested *uint) (uint, error) {
	if requested != nil {
		var u models.User
		if err := tx.WithContext(ctx).First(&u, *requested).Error; err != nil {
			if isNotFound(err) {
				return 0, Validation("Approver not found.")
			}
			return 0, fmt.Errorf("load approver: %w", err)
		}
		if !u.Role.CanReview() {
			return 0, Validation("Approver must be an editor or admin.")
		}
		if u.ID == ownerID {
			return 0, Validation("You cannot approve your own expense.")
		}
		return u.ID, nil
	}

	var ids []uint
	err := tx.WithContext(ctx).Model(&models.User{}).
		Joins("LEFT JOIN approvals ON approvals.approver_id = users.id AND approvals.status = ?", models.ApprovalPending).
		Where("users.role IN ? AND users.id <> ?", []models.Role{models.RoleEditor, models.RoleAdmin}, ownerID).
		Group("users.id").
		Order("COUNT(approvals.id) ASC, users.id ASC").
		Limit(1).
		Pluck("users.id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("pick approver: %w", err)
	}
	if len(ids) == 0 {
		return 0, Validation("No approver available.")
	}
	return ids[0], nil
}

// ListPending 调用者名下的待审批记录，默认按截止时间升序
func (s *ApprovalService) ListPending(ctx context.Context, actor Actor, filter ApprovalFilter) ([]models.Approval, Pagination, error) {
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, Pagination{}, Validation("Invalid priority filter.")
	}
	page, limit, offset := filter.normalize()

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("approver_id = ? AND status = ?", actor.UserID, models.ApprovalPending)
		if filter.Priority != "" {
			db = db.Where("priority = ?", filter.Priority)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Approval{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count approvals: %w", err)
	}

	approvals := []models.Approval{}
	err := s.db.WithContext(ctx).Scopes(scope).
		Preload("Expense").
		Order(filter.orderBy(approvalSortFields, "dueDate", "ASC")).
		Offset(offset).Limit(limit).
		Find(&approvals).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, newPagination(page, limit, total), nil
}

// Get 审批人或管理员
func (s *ApprovalService) Get(ctx context.Context, actor Actor, id uint) (*models.Approval, error) {
	var a models.Approval
	if err := s.db.WithContext(ctx).Preload("Expense").First(&a, id).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("Approval not found.")
		}
		return nil, fmt.Errorf("load approval %d: %w", id, err)
	}
	if !canProcess(actor, &a) {
		return nil, Forbidden("Access denied.")
	}
	return &a, nil
}

// Approve comments 可选
func (s *ApprovalService) Approve(ctx context.Context, actor Actor, id uint, comments string) (*models.Approval, error) {
	return s.decide(ctx, actor, id, models.ApprovalApproved, strings.TrimSpace(comments))
}

// Reject 必须填写驳回原因
func (s *ApprovalService) Reject(ctx context.Context, actor Actor, id uint, comments string) (*models.Approval, error) {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return nil, Validation("Rejection reason is required.")
	}
	return s.decide(ctx, actor, id, models.ApprovalRejected, comments)
}

// decide 在同一事务内以 status = Pending 为条件更新审批记录，并同步报销单状态
func (s *ApprovalService) decide(ctx context.Context, actor Actor, id uint, decision models.ApprovalStatus, comments string) (*models.Approval, error) {
	var result *models.Approval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canProcess(actor, a) {
			return Forbidden("You are not authorized to process this approval.")
		}
		if a.RequestedBy == actor.UserID {
			return Forbidden("You cannot review your own expense.")
		}
		if !a.Status.CanTransitionTo(decision) {
			return InvalidState("Approval has already been processed.")
		}

		now := s.now()
		res := tx.Model(&models.Approval{}).
			Where("id = ? AND status = ?", a.ID, models.ApprovalPending).
			Updates(map[string]interface{}{
				"status":      decision,
				"comments":    comments,
				"reviewed_at": now,
				"reviewed_by": a.ApproverID,
			})
		if res.Error != nil {
			return fmt.Errorf("update approval %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return InvalidState("Approval has already been processed.")
		}

		expenseUpdates := map[string]interface{}{"status": decision.ExpenseStatus()}
		if decision == models.ApprovalApproved {
			expenseUpdates["approved_by"] = actor.UserID
			expenseUpdates["approved_at"] = now
		} else {
			expenseUpdates["rejection_reason"] = comments
		}
		res = tx.Model(&models.Expense{}).
			Where("id = ? AND status = ?", a.ExpenseID, models.ExpenseSubmitted).
			Updates(expenseUpdates)
		if res.Error != nil {
			return fmt.Errorf("update expense %d: %w", a.ExpenseID, res.Error)
		}
		if res.RowsAffected == 0 {
			return InvalidState("Expense is no longer awaiting approval.")
		}

		a.Status = decision
		a.Comments = comments
		a.ReviewedAt = &now
		reviewer := a.ApproverID
		a.ReviewedBy = &reviewer
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	approvalDecisions.WithLabelValues(string(decision)).Inc()
	return result, nil
}

// Delegate 只记录委托信息，审批人不变
func (s *ApprovalService) Delegate(ctx context.Context, actor Actor, id, delegateTo uint, reason string) (*models.Approval, error) {
	reason = strings.TrimSpace(reason)
	if delegateTo == 0 {
		return nil, Validation("Delegate user is required.")
	}
	if reason == "" {
		return nil, Validation("Delegation reason is required.")
	}
	a, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !canProcess(actor, a) {
		return nil, Forbidden("You are not authorized to process this approval.")
	}
	if a.Status != models.ApprovalPending {
		return nil, InvalidState("Cannot delegate processed approval.")
	}
	if _, err := findUser(ctx, s.db, delegateTo); err != nil {
		if IsKind(err, KindNotFound) {
			return nil, Validation("Delegate user not found.")
		}
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Approval{}).
		Where("id = ? AND status = ?", a.ID, models.ApprovalPending).
		Updates(map[string]interface{}{
			"delegated_to":      delegateTo,
			"delegation_reason": reason,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("delegate approval %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, InvalidState("Cannot delegate processed approval.")
	}
	a.DelegatedTo = &delegateTo
	a.DelegationReason = reason
	return a, nil
}

// Escalate 记录升级信息，提交人、审批人或管理员可操作
func (s *ApprovalService) Escalate(ctx context.Context, actor Actor, id uint, reason string) (*models.Approval, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, Validation("Escalation reason is required.")
	}
	a, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !canProcess(actor, a) && a.RequestedBy != actor.UserID {
		return nil, Forbidden("Access denied.")
	}
	if err := s.escalate(ctx, a, actor.UserID, reason); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ApprovalService) escalate(ctx context.Context, a *models.Approval, by uint, reason string) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Approval{}).
		Where("id = ? AND status = ?", a.ID, models.ApprovalPending).
		Updates(map[string]interface{}{
			"escalated_at":      now,
			"escalated_by":      by,
			"escalation_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("escalate approval %d: %w", a.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return InvalidState("Cannot escalate processed approval.")
	}
	a.EscalatedAt = &now
	a.EscalatedBy = &by
	a.EscalationReason = reason
	return nil
}

// Stats 调用者名下的审批统计
func (s *ApprovalService) Stats(ctx context.Context, actor Actor) (*ApprovalStats, error) {
	var rows []struct {
		Status models.ApprovalStatus
		Count  int64
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Approval{}).
		Select("status, COUNT(*) AS count").
		Where("approver_id = ?", actor.UserID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("approval stats: %w", err)
	}

	stats := &ApprovalStats{}
	for _, row := range rows {
		stats.TotalApprovals += row.Count
		switch row.Status {
		case models.ApprovalPending:
			stats.PendingCount = row.Count
		case models.ApprovalApproved:
			stats.ApprovedCount = row.Count
		case models.ApprovalRejected:
			stats.RejectedCount = row.Count
		}
	}
	if err := db.Model(&models.Approval{}).
		Where("approver_id = ? AND status = ? AND due_date < ?", actor.UserID, models.ApprovalPending, s.now()).
		Count(&stats.OverdueCount).Error; err != nil {
		return nil, fmt.Errorf("overdue count: %w", err)
	}
	return stats, nil
}

// ListOverdue 管理员查看所有逾期待审批
func (s *ApprovalService) ListOverdue(ctx context.Context, actor Actor) ([]models.Approval, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden("Insufficient permissions.")
	}
	return s.overdue(ctx)
}

func (s *ApprovalService) overdue(ctx context.Context) ([]models.Approval, error) {
	approvals := []models.Approval{}
	err := s.db.WithContext(ctx).
		Preload("Expense").
		Where("status = ? AND due_date < ?", models.ApprovalPending, s.now()).
		Order("due_date ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue approvals: %w", err)
	}
	return approvals, nil
}

// SendReminders 首次逾期发送提醒邮件，提醒后仍未处理则升级
func (s *ApprovalService) SendReminders(ctx context.Context, actor Actor) (*ReminderResult, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden("Insufficient permissions.")
	}
	approvals, err := s.overdue(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReminderResult{}
	for i := range approvals {
		a := &approvals[i]
		if a.ReminderSent {
			if a.EscalatedAt != nil {
				continue
			}
			reason := "No decision after overdue reminder."
			if a.ReminderSentAt != nil {
				reason = fmt.Sprintf("No decision after reminder sent on %s.", a.ReminderSentAt.Format("2006-01-02"))
			}
			if err := s.escalate(ctx, a, actor.UserID, reason); err != nil {
				slog.Error("escalate approval failed", "approvalId", a.ID, logger.Err(err))
				result.Failed++
				continue
			}
			result.Escalated++
			continue
		}

		if err := s.remind(ctx, a); err != nil {
			slog.Error("send approval reminder failed", "approvalId", a.ID, logger.Err(err))
			result.Failed++
			continue
		}
		result.Reminded++
	}
	return result, nil
}

func (s *ApprovalService) remind(ctx context.Context, a *models.Approval) error {
	approver, err := findUser(ctx, s.db, a.ApproverID)
	if err != nil {
		return err
	}
	reminder := ApprovalReminder{ApprovalID: a.ID, DueDate: a.DueDate}
	if a.Expense != nil {
		reminder.Subject = a.Expense.Subject
		reminder.Amount = models.FormatAmount(a.Expense.Amount, a.Expense.Currency)
	}
	if err := s.mailer.SendApprovalReminder(approver.Email, approver.Username, reminder); err != nil {
		return err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.Approval{}).
		Where("id = ?", a.ID).
		Updates(map[string]interface{}{"reminder_sent": true, "reminder_sent_at": now}).Error; err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	a.ReminderSent = true
	a.ReminderSentAt = &now
	remindersSent.Inc()
	return nil
}
