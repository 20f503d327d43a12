package service

import (
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"expensehub/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	t.Cleanup(func() { sqlDB.Close() })
	return gormDB, mock
}

type fakeMailer struct {
	tempPasswords map[string]string
	resetLinks    map[string]string
	reminders     []ApprovalReminder
	err           error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{tempPasswords: map[string]string{}, resetLinks: map[string]string{}}
}

func (m *fakeMailer) SendTemporaryPassword(to, username, password string) error {
	if m.err != nil {
		return m.err
	}
	m.tempPasswords[to] = password
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, username, link string) error {
	if m.err != nil {
		return m.err
	}
	m.resetLinks[to] = link
	return nil
}

func (m *fakeMailer) SendApprovalReminder(to, username string, r ApprovalReminder) error {
	if m.err != nil {
		return m.err
	}
	m.reminders = append(m.reminders, r)
	return nil
}

// captureArg 记录 SQL 参数，用于断言写入的值
type captureArg struct {
	value driver.Value
}

func (c *captureArg) Match(v driver.Value) bool {
	c.value = v
	return true
}

func (c *captureArg) String() string {
	switch v := c.value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func hashFor(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

var userColumns = []string{"id", "username", "email", "password", "role", "created_at", "updated_at", "deleted_at"}

func userRow(rows *sqlmock.Rows, id uint, username string, role models.Role, passwordHash string) *sqlmock.Rows {
	return rows.AddRow(id, username, strings.ToLower(username)+"@example.com", passwordHash, string(role), fixedNow, fixedNow, nil)
}

func userRows(id uint, username string, role models.Role, passwordHash string) *sqlmock.Rows {
	return userRow(sqlmock.NewRows(userColumns), id, username, role, passwordHash)
}

var expenseColumns = []string{"id", "subject", "amount", "currency", "category_id", "owner_id", "status", "tags", "created_at", "updated_at"}

func expenseRows(id, ownerID uint, status models.ExpenseStatus) *sqlmock.Rows {
	return sqlmock.NewRows(expenseColumns).
		AddRow(id, "Flight", 450.00, "USD", 1, ownerID, string(status), []byte(`["trip","q2"]`), fixedNow, fixedNow)
}

var categoryColumns = []string{"id", "name", "description", "is_active", "created_at", "updated_at"}

func categoryRows(id uint, name string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(categoryColumns).AddRow(id, name, "", active, fixedNow, fixedNow)
}

var approvalColumns = []string{"id", "expense_id", "requested_by", "approver_id", "status", "priority", "due_date", "reminder_sent", "reminder_sent_at", "escalated_at", "created_at", "updated_at"}

func approvalRows(id, expenseID, approverID uint, status models.ApprovalStatus) *sqlmock.Rows {
	return sqlmock.NewRows(approvalColumns).
		AddRow(id, expenseID, userActor.UserID, approverID, string(status), "Medium", fixedNow.Add(48*time.Hour), false, nil, nil, fixedNow, fixedNow)
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equalf(t, kind, KindOf(err), "unexpected error: %v", err)
}
