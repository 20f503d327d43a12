package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"expensehub/config"
	"expensehub/logger"
	"expensehub/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	ctxUserKey   = "currentUser"
	ctxUserIDKey = "userID"
	ctxRoleKey   = "role"
)

var jwtSecret []byte

// Claims token 中携带的用户信息
type Claims struct {
	UserID uint        `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// InitJWT 初始化签名密钥
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
}

// GenerateToken 签发 HS256 token
func GenerateToken(user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseToken 校验签名与有效期
func ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": message,
		"error":   code,
	})
}

// authenticate 解析 token 并加载用户，用户被删除后 token 立即失效
func authenticate(c *gin.Context, db *gorm.DB, tokenStr string) (*models.User, string) {
	claims, err := ParseToken(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, "Token expired."
		}
		return nil, "Invalid token."
	}
	var user models.User
	if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("load token user failed", "userId", claims.UserID, logger.Err(err))
		}
		return nil, "Invalid token."
	}
	return &user, ""
}

func setCurrentUser(c *gin.Context, user *models.User) {
	c.Set(ctxUserKey, user)
	c.Set(ctxUserIDKey, user.ID)
	c.Set(ctxRoleKey, user.Role)
}

// JWTAuth 需要登录的接口
func JWTAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Access token required.")
			return
		}
		user, msg := authenticate(c, db, tokenStr)
		if user == nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}
		setCurrentUser(c, user)
		c.Next()
	}
}

// OptionalAuth 携带有效 token 时设置当前用户，否则按匿名处理
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr := bearerToken(c); tokenStr != "" {
			if user, _ := authenticate(c, db, tokenStr); user != nil {
				setCurrentUser(c, user)
			}
		}
		c.Next()
	}
}

// GetCurrentUserID 未登录返回 0
func GetCurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func GetCurrentRole(c *gin.Context) models.Role {
	if v, ok := c.Get(ctxRoleKey); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return ""
}

// GetCurrentUser 未登录返回 nil
func GetCurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
