package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"expensehub/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(user *models.User) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if user != nil {
				setCurrentUser(c, user)
			}
			c.Next()
		})
		r.POST("/categories", RequireRoles(models.RoleAdmin, models.RoleEditor), func(c *gin.Context) {
			c.String(200, "ok")
		})
		return r
	}

	do := func(user *models.User) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		newRouter(user).ServeHTTP(w, httptest.NewRequest("POST", "/categories", nil))
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do(nil).Code)
	w := do(&models.User{ID: 3, Role: models.RoleUser})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient permissions.")
	assert.Equal(t, 200, do(&models.User{ID: 2, Role: models.RoleEditor}).Code)
	assert.Equal(t, 200, do(&models.User{ID: 1, Role: models.RoleAdmin}).Code)
}
