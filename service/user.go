package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"expensehub/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

// UserService 用户管理
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserFilter 用户列表筛选
type UserFilter struct {
	Role   models.Role
	Search string
	PageQuery
}

// UserUpdate 管理员修改用户
type UserUpdate struct {
	Username *string
	Email    *string
	Role     *models.Role
}

// RoleCount 角色分布
type RoleCount struct {
	Role  models.Role `json:"role"`
	Count int64       `json:"count"`
}

// UserStats 用户统计
type UserStats struct {
	TotalUsers    int64         `json:"totalUsers"`
	RoleBreakdown []RoleCount   `json:"roleBreakdown"`
	RecentUsers   []models.User `json:"recentUsers"`
}

var userSortFields = map[string]string{
	"createdAt": "created_at",
	"username":  "username",
	"email":     "email",
	"role":      "role",
	"lastLogin": "last_login",
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func checkPasswordLength(password string) error {
	if len(password) < minPasswordLength {
		return Validation("Password must be at least %d characters long.", minPasswordLength)
	}
	return nil
}

func findUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("User not found.")
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

var (
	errUsernameTaken = Conflict("Username is already taken.")
	errEmailTaken    = Conflict("Email is already in use.")
)

// ensureUnique 检查用户名/邮箱是否被其他用户占用，已软删除的用户仍占用唯一索引
func ensureUnique(ctx context.Context, db *gorm.DB, column, value string, excludeID uint, conflict error) error {
	var count int64
	q := db.WithContext(ctx).Unscoped().Model(&models.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check %s: %w", column, err)
	}
	if count > 0 {
		return conflict
	}
	return nil
}

// Create 直接以指定密码创建用户（命令行初始化管理员）
func (s *UserService) Create(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" {
		return nil, Validation("Username and email are required.")
	}
	if !role.Valid() {
		return nil, Validation("Invalid role.")
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}
	if err := ensureUnique(ctx, s.db, "username", username, 0, errUsernameTaken); err != nil {
		return nil, err
	}
	if err := ensureUnique(ctx, s.db, "email", email, 0, errEmailTaken); err != nil {
		return nil, err
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: username, Email: email, Password: hashed, Role: role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, Conflict("User with this email or username already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// List 管理员查看用户列表
func (s *UserService) List(ctx context.Context, actor Actor, filter UserFilter) ([]models.User, Pagination, error) {
	if !actor.IsAdmin() {
		return nil, Pagination{}, Forbidden("Insufficient permissions.")
	}
	page, limit, offset := filter.normalize()

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := s.db.WithContext(ctx).Scopes(scope).
		Order(filter.orderBy(userSortFields, "createdAt", "DESC")).
		Offset(offset).Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list users: %w", err)
	}
	return users, newPagination(page, limit, total), nil
}

// Get 本人或管理员
func (s *UserService) Get(ctx context.Context, actor Actor, id uint) (*models.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, Forbidden("Access denied.")
	}
	return findUser(ctx, s.db, id)
}

// Update 管理员修改用户名、邮箱、角色
func (s *UserService) Update(ctx context.Context, actor Actor, id uint, in UserUpdate) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden("Insufficient permissions.")
	}
	user, err := findUser(ctx, s.db, id)
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
	if in.Role != nil && *in.Role != user.Role {
		if !in.Role.Valid() {
			return nil, Validation("Invalid role.")
		}
		updates["role"] = *in.Role
		user.Role = *in.Role
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, Conflict("User with this email or username already exists.")
		}
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return user, nil
}

// Delete 管理员删除用户，不能删除自己
func (s *UserService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return Forbidden("Insufficient permissions.")
	}
	if actor.UserID == id {
		return Validation("You cannot delete your own account.")
	}
	user, err := findUser(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

// ChangePassword 本人需校验原密码，管理员代改跳过
func (s *UserService) ChangePassword(ctx context.Context, actor Actor, id uint, currentPassword, newPassword string) error {
	self := actor.UserID == id
	if !self && !actor.IsAdmin() {
		return Forbidden("Access denied.")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}
	user, err := findUser(ctx, s.db, id)
	if err != nil {
		return err
	}
	if self {
		if currentPassword == "" {
			return Validation("Current password is required.")
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)) != nil {
			return Validation("Current password is incorrect.")
		}
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Stats 用户总数、角色分布、最近注册的 10 个用户
func (s *UserService) Stats(ctx context.Context, actor Actor) (*UserStats, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden("Insufficient permissions.")
	}
	stats := &UserStats{RoleBreakdown: []RoleCount{}, RecentUsers: []models.User{}}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&stats.RoleBreakdown).Error; err != nil {
		return nil, fmt.Errorf("role breakdown: %w", err)
	}
	if err := db.Order("created_at DESC").Limit(10).Find(&stats.RecentUsers).Error; err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	return stats, nil
}

func touchLastLogin(ctx context.Context, db *gorm.DB, user *models.User, now time.Time) error {
	user.LastLogin = &now
	return db.WithContext(ctx).Model(user).Update("last_login", now).Error
}
