package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResetTokenTTL 重置链接有效期
const ResetTokenTTL = time.Hour

// GenerateToken 生成 32 字节随机令牌（hex）
func GenerateToken() (string, error) {
	return randomHex(32)
}

// GenerateTemporaryPassword 注册时发送给用户的 16 位临时密码
func GenerateTemporaryPassword() (string, error) {
	return randomHex(8)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken 数据库只保存令牌摘要
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SetResetToken 记录令牌摘要与过期时间
func (u *User) SetResetToken(token string, now time.Time) {
	hash := HashToken(token)
	expires := now.Add(ResetTokenTTL)
	u.ResetPasswordToken = &hash
	u.ResetPasswordExpires = &expires
}

// ResetTokenValid 令牌存在且未过期
func (u *User) ResetTokenValid(now time.Time) bool {
	if u.ResetPasswordToken == nil || u.ResetPasswordExpires == nil {
		return false
	}
	return now.Before(*u.ResetPasswordExpires)
}
