package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"expensehub/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleExpenses() []models.Expense {
	submitted := fixedNow
	return []models.Expense{
		{
			ID: 1, Subject: "Flight", Amount: 450, Currency: "USD", Status: models.ExpenseApproved,
			Tags: models.Tags{"trip", "q2"}, SubmittedAt: &submitted, CreatedAt: fixedNow,
			Category: &models.Category{Name: "Travel"},
		},
		{ID: 2, Subject: "Taxi", Amount: 12.5, Currency: "USD", Status: models.ExpenseDraft, CreatedAt: fixedNow},
		{ID: 3, Subject: "Hotel", Amount: 99.99, Currency: "EUR", Status: models.ExpenseSubmitted, CreatedAt: fixedNow},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleExpenses()))

	content := buf.String()
	require.True(t, strings.HasPrefix(content, "\xEF\xBB\xBF"))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, exportHeaders, records[0])
	assert.Equal(t, []string{"1", "Flight", "Travel", "450.00", "USD", "Approved", "trip;q2", "2026-05-04 10:00:00", "2026-05-04 10:00:00"}, records[1])
	assert.Equal(t, "", records[2][2])
	assert.Equal(t, "", records[2][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleExpenses()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Expenses")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "Flight", rows[1][1])

	// 合计按币种分行
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "3 expenses", rows[4][1])
	assert.Equal(t, "462.5", rows[4][3])
	assert.Equal(t, "USD", rows[4][4])
	assert.Equal(t, "99.99", rows[5][3])
	assert.Equal(t, "EUR", rows[5][4])
}

func TestExpenseService_ExportRows(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	from := fixedNow.AddDate(0, -1, 0)

	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE owner_id = \\? AND created_at >= \\? ORDER BY created_at DESC").
		WithArgs(userActor.UserID, from).
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectQuery("SELECT \\* FROM `categories` WHERE `categories`.`id` = \\?").
		WillReturnRows(categoryRows(1, "Travel", true))

	rows, err := s.ExportRows(context.Background(), userActor, &from, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Travel", rows[0].Category.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_ExportRows_Empty(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE owner_id = \\? ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(expenseColumns))

	rows, err := s.ExportRows(context.Background(), userActor, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}
