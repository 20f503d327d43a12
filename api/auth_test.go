package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"expensehub/middleware"
	"expensehub/models"
	"expensehub/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthRouter(t *testing.T, actor gin.HandlerFunc) (*gin.Engine, sqlmock.Sqlmock, *stubMailer) {
	db, mock := setupMockDB(t)
	mailer := &stubMailer{}
	h := NewAuthHandler(service.NewAuthService(db, mailer, "https://app.example.com"), time.Hour)

	r := gin.New()
	if actor != nil {
		r.Use(actor)
	}
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/reset-password", h.ResetPassword)
	return r, mock, mailer
}

func TestAuthHandler_Register(t *testing.T) {
	r, mock, mailer := newAuthRouter(t, nil)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	w := doRequest(r, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "User created successfully! A temporary password has been sent to the email.", resp.Message)
	var user models.PublicUser
	require.NoError(t, json.Unmarshal(resp.Data, &user))
	assert.Equal(t, uint(5), user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotContains(t, string(resp.Data), "password")
	assert.Len(t, mailer.tempPasswords["alice@example.com"], 16)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/auth/register", `{"username":"alice","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, string(service.KindValidation), resp.Error)
	assert.Equal(t, "Please provide a valid email address.", resp.Message)

	w = doRequest(r, http.MethodPost, "/auth/register", `{"username":"al","email":"al@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "username must be at least 3 characters long.", decode(t, w).Message)

	w = doRequest(r, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_ElevatedRoleAnonymous(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/auth/register", `{"username":"mallory","email":"m@example.com","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(service.KindForbidden), decode(t, w).Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	w := doRequest(r, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(service.KindConflict), decode(t, w).Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "alice", "alice@example.com", string(hash), "editor", testNow, testNow, nil))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `last_login`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doRequest(r, http.MethodPost, "/auth/login", `{"email":"Alice@Example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, "Login successful!", resp.Message)
	var data LoginResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.Token)
	assert.NotContains(t, string(resp.Data), string(hash))

	claims, err := middleware.ParseToken(data.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.UserID)
	assert.Equal(t, models.RoleEditor, claims.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "alice", "alice@example.com", string(hash), "user", testNow, testNow, nil))

	w := doRequest(r, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Invalid email or password.", resp.Message)
	assert.Equal(t, string(service.KindUnauthorized), resp.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_ForgotPassword_UnknownEmail(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns))

	w := doRequest(r, http.MethodPost, "/auth/forgot-password", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "If the email exists, a password reset link has been sent.", decode(t, w).Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_ResetPassword_ShortPassword(t *testing.T) {
	r, mock, _ := newAuthRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/auth/reset-password", `{"token":"abc","newPassword":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "newPassword must be at least 6 characters long.", decode(t, w).Message)
	require.NoError(t, mock.ExpectationsWereMet())
}
