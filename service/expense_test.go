package service

import (
	"context"
	"testing"

	"expensehub/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpenseService(t *testing.T) (*ExpenseService, sqlmock.Sqlmock, *fakeMailer) {
	db, mock := setupMockDB(t)
	mailer := newFakeMailer()
	approvals := NewApprovalService(db, mailer, 3)
	approvals.now = fixedClock
	s := NewExpenseService(db, approvals)
	s.now = fixedClock
	return s, mock, mailer
}

func TestExpenseService_Create(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectQuery("SELECT \\* FROM `categories` WHERE `categories`.`id` = \\?").
		WithArgs(1).
		WillReturnRows(categoryRows(1, "Travel", true))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `expenses`").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	e, err := s.Create(context.Background(), userActor, ExpenseInput{
		Subject:    " Flight ",
		Amount:     450,
		Currency:   "eur",
		CategoryID: 1,
		Tags:       models.Tags{"trip"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), e.ID)
	assert.Equal(t, "Flight", e.Subject)
	assert.Equal(t, "EUR", e.Currency)
	assert.Equal(t, models.ExpenseDraft, e.Status)
	assert.Equal(t, userActor.UserID, e.OwnerID)
	assert.Equal(t, "450.00 EUR", e.FormattedAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_Create_Validation(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, userActor, ExpenseInput{Amount: 10, CategoryID: 1})
	assertKind(t, err, KindValidation)

	_, err = s.Create(ctx, userActor, ExpenseInput{Subject: "Taxi", Amount: 0, CategoryID: 1})
	assertKind(t, err, KindValidation)

	_, err = s.Create(ctx, userActor, ExpenseInput{Subject: "Taxi", Amount: 10, Currency: "EURO", CategoryID: 1})
	assertKind(t, err, KindValidation)

	_, err = s.Create(ctx, userActor, ExpenseInput{Subject: "Rent", Amount: 10, CategoryID: 1, IsRecurring: true})
	assertKind(t, err, KindValidation)

	// 停用的类别
	mock.ExpectQuery("SELECT \\* FROM `categories` WHERE `categories`.`id` = \\?").
		WillReturnRows(categoryRows(2, "Old", false))
	_, err = s.Create(ctx, userActor, ExpenseInput{Subject: "Taxi", Amount: 10, CategoryID: 2})
	assertKind(t, err, KindValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_Get(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WithArgs(7).
		WillReturnRows(expenseRows(7, 9, models.ExpenseDraft))
	mock.ExpectQuery("SELECT \\* FROM `categories` WHERE `categories`.`id` = \\?").
		WillReturnRows(categoryRows(1, "Travel", true))
	_, err := s.Get(ctx, userActor, 7)
	assertKind(t, err, KindForbidden)

	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectQuery("SELECT \\* FROM `categories` WHERE `categories`.`id` = \\?").
		WillReturnRows(categoryRows(1, "Travel", true))
	e, err := s.Get(ctx, userActor, 7)
	require.NoError(t, err)
	require.NotNil(t, e.Category)
	assert.Equal(t, "Travel", e.Category.Name)
	assert.Equal(t, models.Tags{"trip", "q2"}, e.Tags)
	assert.Equal(t, "450.00 USD", e.FormattedAmount)

	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(sqlmock.NewRows(expenseColumns))
	_, err = s.Get(ctx, adminActor, 99)
	assertKind(t, err, KindNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_List(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `expenses` WHERE owner_id = \\? AND status = \\?").
		WithArgs(userActor.UserID, "Draft").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE owner_id = \\? AND status = \\? ORDER BY COALESCE\\(submitted_at, created_at\\) DESC, id DESC LIMIT 10").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectQuery("SELECT \\* FROM `categories` WHERE `categories`.`id` = \\?").
		WillReturnRows(categoryRows(1, "Travel", true))

	list, page, err := s.List(context.Background(), userActor, ExpenseFilter{Status: models.ExpenseDraft})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.False(t, page.HasNextPage)

	_, _, err = s.List(context.Background(), userActor, ExpenseFilter{Status: "Archived"})
	assertKind(t, err, KindValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_Delete(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()

	// 本人草稿
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectExec("DELETE FROM `approvals` WHERE expense_id = \\?").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `expenses` WHERE `expenses`.`id` = \\?").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.Delete(ctx, userActor, 7))

	// 本人已提交
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(8, userActor.UserID, models.ExpenseSubmitted))
	mock.ExpectRollback()
	assertKind(t, s.Delete(ctx, userActor, 8), KindValidation)

	// 管理员删除他人已批准的报销单
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(9, userActor.UserID, models.ExpenseApproved))
	mock.ExpectExec("DELETE FROM `approvals` WHERE expense_id = \\?").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `expenses`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.Delete(ctx, adminActor, 9))

	// 管理员删除自己的非草稿
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(10, adminActor.UserID, models.ExpenseSubmitted))
	mock.ExpectRollback()
	assertKind(t, s.Delete(ctx, adminActor, 10), KindValidation)

	// 他人
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(11, 9, models.ExpenseDraft))
	mock.ExpectRollback()
	assertKind(t, s.Delete(ctx, userActor, 11), KindForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_SubmitAutoAssignsApprover(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectExec("UPDATE `expenses` SET `status`=\\?,`submitted_at`=\\?,`updated_at`=\\? WHERE id = \\? AND status = \\?").
		WithArgs("Submitted", fixedNow, sqlmock.AnyArg(), 7, "Draft").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM `users` LEFT JOIN approvals ON approvals.approver_id = users.id AND approvals.status = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec("INSERT INTO `approvals`").WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	e, a, err := s.Submit(context.Background(), userActor, 7, SubmitInput{})
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseSubmitted, e.Status)
	require.NotNil(t, e.SubmittedAt)
	assert.Equal(t, fixedNow, *e.SubmittedAt)

	assert.Equal(t, uint(11), a.ID)
	assert.Equal(t, uint(2), a.ApproverID)
	assert.Equal(t, userActor.UserID, a.RequestedBy)
	assert.Equal(t, models.ApprovalPending, a.Status)
	assert.Equal(t, models.PriorityMedium, a.Priority)
	assert.Equal(t, fixedNow.AddDate(0, 0, 3), a.DueDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_SubmitExplicitApprover(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()

	// 指定的审批人是普通用户，整个提交回滚
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectExec("UPDATE `expenses`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE `users`.`id` = \\?").
		WithArgs(4).
		WillReturnRows(userRows(4, "carol", models.RoleUser, "x"))
	mock.ExpectRollback()

	approver := uint(4)
	_, _, err := s.Submit(ctx, userActor, 7, SubmitInput{ApproverID: &approver})
	assertKind(t, err, KindValidation)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectExec("UPDATE `expenses`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE `users`.`id` = \\?").
		WithArgs(2).
		WillReturnRows(userRows(2, "ed", models.RoleEditor, "x"))
	mock.ExpectExec("INSERT INTO `approvals`").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	approver = 2
	_, a, err := s.Submit(ctx, userActor, 7, SubmitInput{ApproverID: &approver, Priority: models.PriorityUrgent})
	require.NoError(t, err)
	assert.Equal(t, uint(2), a.ApproverID)
	assert.Equal(t, models.PriorityUrgent, a.Priority)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_Submit_OnlyDrafts(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseSubmitted))
	mock.ExpectRollback()
	_, _, err := s.Submit(ctx, userActor, 7, SubmitInput{})
	assertKind(t, err, KindInvalidState)

	// 并发提交，CAS 未命中
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectExec("UPDATE `expenses`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	_, _, err = s.Submit(ctx, userActor, 7, SubmitInput{})
	assertKind(t, err, KindInvalidState)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, 9, models.ExpenseDraft))
	mock.ExpectRollback()
	_, _, err = s.Submit(ctx, userActor, 7, SubmitInput{})
	assertKind(t, err, KindForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_UpdateFields(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseDraft))
	mock.ExpectExec("UPDATE `expenses` SET `amount`=\\?,`tags`=\\?,`updated_at`=\\? WHERE id = \\? AND status = \\?").
		WithArgs(99.5, `["hotel"]`, sqlmock.AnyArg(), 7, "Draft").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	amount := 99.5
	tags := models.Tags{"hotel"}
	e, err := s.Update(context.Background(), userActor, 7, ExpenseUpdate{Amount: &amount, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, 99.5, e.Amount)
	assert.Equal(t, "99.50 USD", e.FormattedAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_UpdateStatusDecision(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseSubmitted))
	mock.ExpectExec("UPDATE `expenses` SET `approved_at`=\\?,`approved_by`=\\?,`status`=\\?,`updated_at`=\\? WHERE id = \\? AND status = \\?").
		WithArgs(fixedNow, adminActor.UserID, "Approved", sqlmock.AnyArg(), 7, "Submitted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `approvals` SET `reviewed_at`=\\?,`reviewed_by`=\\?,`status`=\\?,`updated_at`=\\? WHERE expense_id = \\? AND status = \\?").
		WithArgs(fixedNow, adminActor.UserID, "Approved", sqlmock.AnyArg(), 7, "Pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next := models.ExpenseApproved
	e, err := s.Update(context.Background(), adminActor, 7, ExpenseUpdate{Status: &next})
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseApproved, e.Status)
	require.NotNil(t, e.ApprovedBy)
	assert.Equal(t, adminActor.UserID, *e.ApprovedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

// 编辑只能通过审批接口处理他人的报销单
func TestExpenseService_UpdateStatus_OwnershipFirst(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()
	next := models.ExpenseApproved

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, userActor.UserID, models.ExpenseSubmitted))
	mock.ExpectRollback()
	_, err := s.Update(ctx, editorActor, 7, ExpenseUpdate{Status: &next})
	assertKind(t, err, KindForbidden)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
		WillReturnRows(expenseRows(7, adminActor.UserID, models.ExpenseSubmitted))
	mock.ExpectRollback()
	_, err = s.Update(ctx, adminActor, 7, ExpenseUpdate{Status: &next})
	assertKind(t, err, KindForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_UpdateRejectsIllegalChanges(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)
	ctx := context.Background()

	expectLoad := func(status models.ExpenseStatus) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE `expenses`.`id` = \\?").
			WillReturnRows(expenseRows(7, userActor.UserID, status))
		mock.ExpectRollback()
	}

	// 已批准的报销单不能回到草稿
	expectLoad(models.ExpenseApproved)
	draft := models.ExpenseDraft
	_, err := s.Update(ctx, adminActor, 7, ExpenseUpdate{Status: &draft})
	assertKind(t, err, KindInvalidState)

	// 已支付为终态
	expectLoad(models.ExpensePaid)
	rejected := models.ExpenseRejected
	_, err = s.Update(ctx, adminActor, 7, ExpenseUpdate{Status: &rejected})
	assertKind(t, err, KindInvalidState)

	// 已批准后不能编辑字段
	expectLoad(models.ExpenseApproved)
	subject := "Changed"
	_, err = s.Update(ctx, userActor, 7, ExpenseUpdate{Subject: &subject})
	assertKind(t, err, KindInvalidState)

	// 普通用户不能改状态
	expectLoad(models.ExpenseSubmitted)
	approved := models.ExpenseApproved
	_, err = s.Update(ctx, userActor, 7, ExpenseUpdate{Status: &approved})
	assertKind(t, err, KindForbidden)

	// 提交只能通过 submit
	expectLoad(models.ExpenseDraft)
	submitted := models.ExpenseSubmitted
	_, err = s.Update(ctx, adminActor, 7, ExpenseUpdate{Status: &submitted})
	assertKind(t, err, KindInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_Stats(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS count, COALESCE\\(SUM\\(amount\\), 0\\) AS amount FROM `expenses` WHERE owner_id = \\? GROUP BY `status`").
		WithArgs(userActor.UserID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "amount"}).
			AddRow("Draft", 2, 100.0).
			AddRow("Approved", 1, 50.5))

	stats, err := s.Stats(context.Background(), userActor)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalExpenses)
	assert.Equal(t, 150.5, stats.TotalAmount)
	assert.Equal(t, 50.17, stats.AverageAmount)
	assert.Len(t, stats.StatusBreakdown, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseService_StatsEmpty(t *testing.T) {
	s, mock, _ := newTestExpenseService(t)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\)").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "amount"}))

	stats, err := s.Stats(context.Background(), userActor)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalExpenses)
	assert.Zero(t, stats.AverageAmount)
	assert.NotNil(t, stats.StatusBreakdown)
	require.NoError(t, mock.ExpectationsWereMet())
}
