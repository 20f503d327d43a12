package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	expensesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expensehub_expenses_submitted_total",
		Help: "Expenses moved from Draft to Submitted.",
	})
	approvalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expensehub_approval_decisions_total",
		Help: "Approval decisions by outcome.",
	}, []string{"decision"})
	remindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expensehub_approval_reminders_sent_total",
		Help: "Overdue approval reminder emails sent.",
	})
)
