package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"expensehub/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseService 报销单
type ExpenseService struct {
	db        *gorm.DB
	approvals *ApprovalService
	now       func() time.Time
}

func NewExpenseService(db *gorm.DB, approvals *ApprovalService) *ExpenseService {
	return &ExpenseService{db: db, approvals: approvals, now: time.Now}
}

// ExpenseFilter 列表筛选
type ExpenseFilter struct {
	Status     models.ExpenseStatus
	CategoryID uint
	PageQuery
}

// ExpenseInput 新建报销单
type ExpenseInput struct {
	Subject            string
	Description        string
	Amount             float64
	Currency           string
	CategoryID         uint
	Tags               models.Tags
	IsRecurring        bool
	RecurringFrequency models.RecurringFrequency
	Receipt            *models.Receipt
}

// ExpenseUpdate 部分更新，nil 表示不修改
type ExpenseUpdate struct {
	Subject            *string
	Description        *string
	Amount             *float64
	Currency           *string
	CategoryID         *uint
	Tags               *models.Tags
	IsRecurring        *bool
	RecurringFrequency *models.RecurringFrequency
	Receipt            *models.Receipt
	Status             *models.ExpenseStatus
}

func (u ExpenseUpdate) editsFields() bool {
	return u.Subject != nil || u.Description != nil || u.Amount != nil || u.Currency != nil ||
		u.CategoryID != nil || u.Tags != nil || u.IsRecurring != nil || u.RecurringFrequency != nil || u.Receipt != nil
}

// SubmitInput 提交审批，审批人为空时自动分配
type SubmitInput struct {
	ApproverID *uint
	Priority   models.Priority
}

// StatusCount 状态分布
type StatusCount struct {
	Status models.ExpenseStatus `json:"status"`
	Count  int64                `json:"count"`
	Amount float64              `json:"totalAmount"`
}

// ExpenseStats 个人统计
type ExpenseStats struct {
	TotalExpenses   int64         `json:"totalExpenses"`
	TotalAmount     float64       `json:"totalAmount"`
	AverageAmount   float64       `json:"averageAmount"`
	StatusBreakdown []StatusCount `json:"statusBreakdown"`
}

var expenseSortFields = map[string]string{
	// 草稿没有提交时间，按创建时间排
	"submittedAt": "COALESCE(submitted_at, created_at)",
	"createdAt":   "created_at",
	"amount":      "amount",
	"subject":     "subject",
	"status":      "status",
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD", nil
	}
	if !currencyPattern.MatchString(currency) {
		return "", Validation("Currency must be a 3-letter code.")
	}
	return currency, nil
}

func (s *ExpenseService) activeCategory(ctx context.Context, tx *gorm.DB, id uint) error {
	var cat models.Category
	if err := tx.WithContext(ctx).First(&cat, id).Error; err != nil {
		if isNotFound(err) {
			return Validation("Invalid or inactive category.")
		}
		return fmt.Errorf("load category %d: %w", id, err)
	}
	if !cat.IsActive {
		return Validation("Invalid or inactive category.")
	}
	return nil
}

func (s *ExpenseService) load(ctx context.Context, tx *gorm.DB, id uint) (*models.Expense, error) {
	var e models.Expense
	if err := tx.WithContext(ctx).First(&e, id).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("Expense not found.")
		}
		return nil, fmt.Errorf("load expense %d: %w", id, err)
	}
	return &e, nil
}

func canAccess(actor Actor, e *models.Expense) bool {
	return e.OwnerID == actor.UserID || actor.IsAdmin()
}

// List 只返回调用者自己的报销单
func (s *ExpenseService) List(ctx context.Context, actor Actor, filter ExpenseFilter) ([]models.Expense, Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, Pagination{}, Validation("Invalid status filter.")
	}
	page, limit, offset := filter.normalize()

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("owner_id = ?", actor.UserID)
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.CategoryID != 0 {
			db = db.Where("category_id = ?", filter.CategoryID)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Expense{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count expenses: %w", err)
	}

	expenses := []models.Expense{}
	err := s.db.WithContext(ctx).Scopes(scope).
		Preload("Category").
		Order(filter.orderBy(expenseSortFields, "submittedAt", "DESC")).
		Offset(offset).Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, newPagination(page, limit, total), nil
}

// Get 本人或管理员
func (s *ExpenseService) Get(ctx context.Context, actor Actor, id uint) (*models.Expense, error) {
	var e models.Expense
	if err := s.db.WithContext(ctx).Preload("Category").First(&e, id).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("Expense not found.")
		}
		return nil, fmt.Errorf("load expense %d: %w", id, err)
	}
	if !canAccess(actor, &e) {
		return nil, Forbidden("Access denied.")
	}
	return &e, nil
}

// Create 新建草稿
func (s *ExpenseService) Create(ctx context.Context, actor Actor, in ExpenseInput) (*models.Expense, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" || in.CategoryID == 0 {
		return nil, Validation("Subject, amount and category are required.")
	}
	if in.Amount <= 0 {
		return nil, Validation("Amount must be greater than zero.")
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	freq := in.RecurringFrequency
	if in.IsRecurring && !freq.Valid() {
		return nil, Validation("Recurring frequency is required for recurring expenses.")
	}
	if !in.IsRecurring {
		freq = ""
	}
	if err := s.activeCategory(ctx, s.db, in.CategoryID); err != nil {
		return nil, err
	}

	tags := in.Tags
	if tags == nil {
		tags = models.Tags{}
	}
	e := models.Expense{
		Subject:            subject,
		Description:        strings.TrimSpace(in.Description),
		Amount:             in.Amount,
		Currency:           currency,
		CategoryID:         in.CategoryID,
		OwnerID:            actor.UserID,
		Status:             models.ExpenseDraft,
		Tags:               tags,
		IsRecurring:        in.IsRecurring,
		RecurringFrequency: freq,
	}
	if in.Receipt != nil {
		e.Receipt = *in.Receipt
	}
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return &e, nil
}

// Update 本人或管理员修改；状态只能由 admin/editor 按转移表修改
func (s *ExpenseService) Update(ctx context.Context, actor Actor, id uint, in ExpenseUpdate) (*models.Expense, error) {
	var result *models.Expense
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canAccess(actor, e) {
			return Forbidden("Access denied.")
		}

		prev := e.Status
		updates := map[string]interface{}{}
		if in.editsFields() {
			if e.Status.Finalized() {
				return InvalidState("Cannot edit an expense that has been %s.", strings.ToLower(string(e.Status)))
			}
			if err := s.applyFieldUpdates(ctx, tx, e, in, updates); err != nil {
				return err
			}
		}

		var decision models.ApprovalStatus
		if in.Status != nil && *in.Status != e.Status {
			next := *in.Status
			if !actor.Role.CanReview() {
				return Forbidden("Only admins and editors can change expense status.")
			}
			if !next.Valid() {
				return Validation("Invalid status.")
			}
			if !e.Status.CanTransitionTo(next) {
				return InvalidState("Cannot change status from %s to %s.", e.Status, next)
			}
			if next == models.ExpenseSubmitted {
				return InvalidState("Use the submit action to submit an expense.")
			}
			if e.OwnerID == actor.UserID {
				return Forbidden("You cannot review your own expense.")
			}
			now := s.now()
			updates["status"] = next
			switch next {
			case models.ExpenseApproved:
				decision = models.ApprovalApproved
				updates["approved_by"] = actor.UserID
				updates["approved_at"] = now
				e.ApprovedBy, e.ApprovedAt = &actor.UserID, &now
			case models.ExpenseRejected:
				decision = models.ApprovalRejected
			}
			e.Status = next
		}

		if len(updates) == 0 {
			result = e
			return nil
		}
		res := tx.Model(&models.Expense{}).Where("id = ? AND status = ?", e.ID, prev).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update expense %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return InvalidState("Expense was modified concurrently, please retry.")
		}
		if decision != "" {
			// 同步关闭该报销单的待审批记录
			if err := tx.Model(&models.Approval{}).
				Where("expense_id = ? AND status = ?", e.ID, models.ApprovalPending).
				Updates(map[string]interface{}{
					"status":      decision,
					"reviewed_at": s.now(),
					"reviewed_by": actor.UserID,
				}).Error; err != nil {
				return fmt.Errorf("close approvals: %w", err)
			}
			approvalDecisions.WithLabelValues(string(decision)).Inc()
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ExpenseService) applyFieldUpdates(ctx context.Context, tx *gorm.DB, e *models.Expense, in ExpenseUpdate, updates map[string]interface{}) error {
	if in.Subject != nil {
		subject := strings.TrimSpace(*in.Subject)
		if subject == "" {
			return Validation("Subject cannot be empty.")
		}
		updates["subject"] = subject
		e.Subject = subject
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Amount != nil {
		if *in.Amount <= 0 {
			return Validation("Amount must be greater than zero.")
		}
		updates["amount"] = *in.Amount
		e.Amount = *in.Amount
	}
	if in.Currency != nil {
		currency, err := normalizeCurrency(*in.Currency)
		if err != nil {
			return err
		}
		updates["currency"] = currency
		e.Currency = currency
	}
	if in.CategoryID != nil && *in.CategoryID != e.CategoryID {
		if err := s.activeCategory(ctx, tx, *in.CategoryID); err != nil {
			return err
		}
		updates["category_id"] = *in.CategoryID
		e.CategoryID = *in.CategoryID
	}
	if in.Tags != nil {
		tags := *in.Tags
		if tags == nil {
			tags = models.Tags{}
		}
		updates["tags"] = tags
		e.Tags = tags
	}
	if in.Receipt != nil {
		updates["receipt_filename"] = in.Receipt.Filename
		updates["receipt_original_name"] = in.Receipt.OriginalName
		updates["receipt_mime_type"] = in.Receipt.MimeType
		updates["receipt_size"] = in.Receipt.Size
		updates["receipt_url"] = in.Receipt.URL
		e.Receipt = *in.Receipt
	}
	if in.IsRecurring != nil {
		e.IsRecurring = *in.IsRecurring
		updates["is_recurring"] = e.IsRecurring
	}
	if in.RecurringFrequency != nil {
		e.RecurringFrequency = *in.RecurringFrequency
	}
	if e.IsRecurring && !e.RecurringFrequency.Valid() {
		return Validation("Recurring frequency is required for recurring expenses.")
	}
	if !e.IsRecurring {
		e.RecurringFrequency = ""
	}
	if in.IsRecurring != nil || in.RecurringFrequency != nil {
		updates["recurring_frequency"] = e.RecurringFrequency
	}
	e.FormattedAmount = models.FormatAmount(e.Amount, e.Currency)
	return nil
}

// Delete 本人只能删除草稿，管理员删除他人报销单不受限制
func (s *ExpenseService) Delete(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canAccess(actor, e) {
			return Forbidden("Access denied.")
		}
		if e.OwnerID == actor.UserID && e.Status != models.ExpenseDraft {
			return Validation("Cannot delete submitted or approved expenses.")
		}
		if err := tx.Where("expense_id = ?", e.ID).Delete(&models.Approval{}).Error; err != nil {
			return fmt.Errorf("delete approvals of expense %d: %w", id, err)
		}
		if err := tx.Delete(e).Error; err != nil {
			return fmt.Errorf("delete expense %d: %w", id, err)
		}
		return nil
	})
}

// Submit 草稿提交审批，同一事务内创建待审批记录
func (s *ExpenseService) Submit(ctx context.Context, actor Actor, id uint, in SubmitInput) (*models.Expense, *models.Approval, error) {
	var (
		expense  *models.Expense
		approval *models.Approval
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.OwnerID != actor.UserID {
			return Forbidden("Only the owner can submit this expense.")
		}
		if !e.Status.CanTransitionTo(models.ExpenseSubmitted) {
			return InvalidState("Only draft expenses can be submitted.")
		}

		now := s.now()
		res := tx.Model(&models.Expense{}).
			Where("id = ? AND status = ?", e.ID, models.ExpenseDraft).
			Updates(map[string]interface{}{"status": models.ExpenseSubmitted, "submitted_at": now})
		if res.Error != nil {
			return fmt.Errorf("submit expense %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return InvalidState("Only draft expenses can be submitted.")
		}
		e.Status = models.ExpenseSubmitted
		e.SubmittedAt = &now

		a, err := s.approvals.open(ctx, tx, e, in)
		if err != nil {
			return err
		}
		expense, approval = e, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	expensesSubmitted.Inc()
	return expense, approval, nil
}

// Stats 数量、总额、平均值与状态分布
func (s *ExpenseService) Stats(ctx context.Context, actor Actor) (*ExpenseStats, error) {
	var breakdown []StatusCount
	err := s.db.WithContext(ctx).Model(&models.Expense{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("owner_id = ?", actor.UserID).
		Group("status").
		Scan(&breakdown).Error
	if err != nil {
		return nil, fmt.Errorf("expense stats: %w", err)
	}

	stats := &ExpenseStats{StatusBreakdown: []StatusCount{}}
	total := decimal.Zero
	for _, row := range breakdown {
		amount := decimal.NewFromFloat(row.Amount).Round(2)
		row.Amount = amount.InexactFloat64()
		stats.TotalExpenses += row.Count
		total = total.Add(amount)
		stats.StatusBreakdown = append(stats.StatusBreakdown, row)
	}
	stats.TotalAmount = total.Round(2).InexactFloat64()
	if stats.TotalExpenses > 0 {
		stats.AverageAmount = total.Div(decimal.NewFromInt(stats.TotalExpenses)).Round(2).InexactFloat64()
	}
	return stats, nil
}

// ExportRows 导出本人在 [from, before) 内创建的报销单
func (s *ExpenseService) ExportRows(ctx context.Context, actor Actor, from, before *time.Time) ([]models.Expense, error) {
	q := s.db.WithContext(ctx).Preload("Category").Where("owner_id = ?", actor.UserID)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	expenses := []models.Expense{}
	if err := q.Order("created_at DESC").Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	return expenses, nil
}
