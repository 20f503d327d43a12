package models

import (
	"time"
)

// ApprovalStatus 审批状态
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending: {ApprovalApproved, ApprovalRejected},
}

// CanTransitionTo Approved/Rejected 为终态
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	for _, to := range approvalTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// ExpenseStatus 审批结果对应的报销单状态
func (s ApprovalStatus) ExpenseStatus() ExpenseStatus {
	switch s {
	case ApprovalApproved:
		return ExpenseApproved
	case ApprovalRejected:
		return ExpenseRejected
	}
	return ExpenseSubmitted
}

// Priority 优先级
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Approval 审批记录，不会被删除（报销单被管理员删除时除外）
type Approval struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	ExpenseID        uint           `json:"expenseId" gorm:"index;not null"`
	RequestedBy      uint           `json:"requestedBy" gorm:"not null"`
	ApproverID       uint           `json:"approverId" gorm:"index:idx_approver_status;not null"`
	Status           ApprovalStatus `json:"status" gorm:"size:20;default:Pending;index:idx_approver_status;index;not null"`
	Priority         Priority       `json:"priority" gorm:"size:10;default:Medium;index;not null"`
	Comments         string         `json:"comments,omitempty" gorm:"size:1000"`
	ReviewedAt       *time.Time     `json:"reviewedAt"`
	ReviewedBy       *uint          `json:"reviewedBy"`
	DelegatedTo      *uint          `json:"delegatedTo"`
	DelegationReason string         `json:"delegationReason,omitempty" gorm:"size:500"`
	EscalatedAt      *time.Time     `json:"escalatedAt"`
	EscalatedBy      *uint          `json:"escalatedBy"`
	EscalationReason string         `json:"escalationReason,omitempty" gorm:"size:500"`
	DueDate          time.Time      `json:"dueDate" gorm:"index;not null"`
	ReminderSent     bool           `json:"reminderSent" gorm:"default:false"`
	ReminderSentAt   *time.Time     `json:"reminderSentAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	Expense          *Expense       `json:"expense,omitempty" gorm:"foreignKey:ExpenseID"`
}

func (Approval) TableName() string {
	return "approvals"
}

// Overdue 仍在审批且已过截止时间
func (a *Approval) Overdue(now time.Time) bool {
	return a.Status == ApprovalPending && a.DueDate.Before(now)
}
