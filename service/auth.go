package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"expensehub/logger"
	"expensehub/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService 注册、登录、找回密码、个人资料
type AuthService struct {
	db          *gorm.DB
	mailer      Mailer
	frontendURL string
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, mailer Mailer, frontendURL string) *AuthService {
	return &AuthService{
		db:          db,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// RegisterInput 注册参数
type RegisterInput struct {
	Username string
	Email    string
	Role     models.Role
}

// ProfileUpdate 修改个人资料
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// Register 生成临时密码创建用户并邮件通知，邮件发送失败则回滚
// caller 为空表示匿名注册，只能创建普通用户
func (s *AuthService) Register(ctx context.Context, caller *Actor, in RegisterInput) (*models.PublicUser, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" {
		return nil, Validation("Username and email are required.")
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, Validation("Invalid role.")
	}
	if role != models.RoleUser && (caller == nil || !caller.IsAdmin()) {
		return nil, Forbidden("Only administrators can assign elevated roles.")
	}

	var count int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if count > 0 {
		return nil, Conflict("User with this email or username already exists.")
	}

	tempPassword, err := models.GenerateTemporaryPassword()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hashed, err := hashPassword(tempPassword)
	if err != nil {
		return nil, err
	}

	user := models.User{Username: username, Email: email, Password: hashed, Role: role}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return s.mailer.SendTemporaryPassword(user.Email, user.Username, tempPassword)
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, Conflict("User with this email or username already exists.")
		}
		return nil, err
	}

	slog.Info("user registered", "userId", user.ID, "role", user.Role)
	public := user.Public()
	return &public, nil
}

// Authenticate 校验邮箱和密码，不区分用户不存在与密码错误
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return nil, Unauthorized("Invalid email or password.")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, Unauthorized("Invalid email or password.")
	}
	if err := touchLastLogin(ctx, s.db, &user, s.now()); err != nil {
		slog.Warn("update last login failed", "userId", user.ID, logger.Err(err))
	}
	return &user, nil
}

// RequestPasswordReset 无论邮箱是否存在都返回成功
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := models.GenerateToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	user.SetResetToken(token, s.now())
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"reset_password_token":   *user.ResetPasswordToken,
		"reset_password_expires": *user.ResetPasswordExpires,
	}).Error; err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	if err := s.mailer.SendPasswordReset(user.Email, user.Username, link); err != nil {
		slog.Error("send reset email failed", "userId", user.ID, logger.Err(err))
	}
	return nil
}

// ResetPassword 令牌一次有效
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return Validation("Token and new password are required.")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("reset_password_token = ? AND reset_password_expires > ?", models.HashToken(token), s.now()).
		First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return InvalidToken("Invalid or expired reset token.")
		}
		return fmt.Errorf("load user by token: %w", err)
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"password":               hashed,
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	}).Error; err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	return findUser(ctx, s.db, userID)
}

// UpdateProfile 修改用户名或邮箱，需重新校验唯一性
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*models.User, error) {
	user, err := findUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, Validation("Username cannot be empty.")
		}
		if username != user.Username {
			if err := ensureUnique(ctx, s.db, "username", username, user.ID, errUsernameTaken); err != nil {
				return nil, err
			}
			updates["username"] = username
			user.Username = username
		}
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" {
			return nil, Validation("Email cannot be empty.")
		}
		if email != user.Email {
			if err := ensureUnique(ctx, s.db, "email", email, user.ID, errEmailTaken); err != nil {
				return nil, err
			}
			updates["email"] = email
			user.Email = email
		}
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, Conflict("User with this email or username already exists.")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}
