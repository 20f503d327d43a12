package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseStatus 报销单状态
type ExpenseStatus string

const (
	ExpenseDraft     ExpenseStatus = "Draft"
	ExpenseSubmitted ExpenseStatus = "Submitted"
	ExpenseApproved  ExpenseStatus = "Approved"
	ExpenseRejected  ExpenseStatus = "Rejected"
	ExpensePaid      ExpenseStatus = "Paid"
)

// Paid 没有任何入边
var expenseTransitions = map[ExpenseStatus][]ExpenseStatus{
	ExpenseDraft:     {ExpenseSubmitted},
	ExpenseSubmitted: {ExpenseApproved, ExpenseRejected},
}

// Valid 是否为已知状态
func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpenseDraft, ExpenseSubmitted, ExpenseApproved, ExpenseRejected, ExpensePaid:
		return true
	}
	return false
}

// CanTransitionTo 查状态转移表
func (s ExpenseStatus) CanTransitionTo(next ExpenseStatus) bool {
	for _, to := range expenseTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Finalized 审批结束后不可再编辑
func (s ExpenseStatus) Finalized() bool {
	return s == ExpenseApproved || s == ExpenseRejected || s == ExpensePaid
}

// RecurringFrequency 周期
type RecurringFrequency string

const (
	FrequencyWeekly    RecurringFrequency = "weekly"
	FrequencyMonthly   RecurringFrequency = "monthly"
	FrequencyQuarterly RecurringFrequency = "quarterly"
	FrequencyYearly    RecurringFrequency = "yearly"
)

func (f RecurringFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Receipt 票据元数据，文件本身不经过本服务
type Receipt struct {
	Filename     string `json:"filename,omitempty" gorm:"size:255"`
	OriginalName string `json:"originalName,omitempty" gorm:"size:255"`
	MimeType     string `json:"mimeType,omitempty" gorm:"size:100"`
	Size         int64  `json:"size,omitempty"`
	URL          string `json:"url,omitempty" gorm:"size:500"`
}

// Tags 有序标签，允许重复，以 JSON 数组存储
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Tags) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported tags type %T", value)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(t))
}

// Expense 报销单
type Expense struct {
	ID                 uint               `json:"id" gorm:"primaryKey"`
	Subject            string             `json:"subject" gorm:"size:200;not null"`
	Description        string             `json:"description" gorm:"size:1000"`
	Amount             float64            `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency           string             `json:"currency" gorm:"size:3;default:USD;not null"`
	CategoryID         uint               `json:"categoryId" gorm:"index;not null"`
	OwnerID            uint               `json:"ownerId" gorm:"index;not null"`
	Status             ExpenseStatus      `json:"status" gorm:"size:20;default:Draft;index;not null"`
	Receipt            Receipt            `json:"receipt" gorm:"embedded;embeddedPrefix:receipt_"`
	ApprovedBy         *uint              `json:"approvedBy"`
	ApprovedAt         *time.Time         `json:"approvedAt"`
	RejectionReason    string             `json:"rejectionReason,omitempty" gorm:"size:500"`
	SubmittedAt        *time.Time         `json:"submittedAt" gorm:"index"`
	Tags               Tags               `json:"tags" gorm:"type:text"`
	IsRecurring        bool               `json:"isRecurring" gorm:"default:false"`
	RecurringFrequency RecurringFrequency `json:"recurringFrequency,omitempty" gorm:"size:20"`
	FormattedAmount    string             `json:"formattedAmount" gorm:"-"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	Category           *Category          `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}

// FormatAmount "450.00 USD"
func FormatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%s %s", decimal.NewFromFloat(amount).StringFixed(2), currency)
}

func (e *Expense) AfterFind(tx *gorm.DB) error {
	e.FormattedAmount = FormatAmount(e.Amount, e.Currency)
	return nil
}

func (e *Expense) AfterSave(tx *gorm.DB) error {
	e.FormattedAmount = FormatAmount(e.Amount, e.Currency)
	return nil
}
