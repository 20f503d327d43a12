package models

import (
	"time"

	"gorm.io/gorm"
)

// Role 用户角色
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// CanReview admin 与 editor 可以审批
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleEditor
}

// User 用户模型
type User struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	Username             string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email                string         `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password             string         `json:"-" gorm:"size:255;not null"`
	Role                 Role           `json:"role" gorm:"size:20;default:user;index;not null"`
	ResetPasswordToken   *string        `json:"-" gorm:"size:64;uniqueIndex"` // sha256(token)
	ResetPasswordExpires *time.Time     `json:"-"`
	LastLogin            *time.Time     `json:"lastLogin"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// PublicUser 注册等接口返回的公开字段
type PublicUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Public 去掉敏感字段
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
