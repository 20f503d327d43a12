package router

import (
	"log/slog"
	"net/http"

	"expensehub/api"
	"expensehub/config"
	_ "expensehub/docs"
	"expensehub/middleware"
	"expensehub/models"
	"expensehub/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps 路由依赖，由 main 组装
type Deps struct {
	DB         *gorm.DB
	Logger     *slog.Logger
	Auth       *service.AuthService
	Users      *service.UserService
	Categories *service.CategoryService
	Expenses   *service.ExpenseService
	Approvals  *service.ApprovalService
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	api.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	jwtAuth := middleware.JWTAuth(deps.DB)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	limiter := middleware.RateLimit(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)

	authHandler := api.NewAuthHandler(deps.Auth, cfg.JWT.ExpireTime)
	userHandler := api.NewUserHandler(deps.Users)
	categoryHandler := api.NewCategoryHandler(deps.Categories)
	expenseHandler := api.NewExpenseHandler(deps.Expenses)
	exportHandler := api.NewExportHandler(deps.Expenses)
	approvalHandler := api.NewApprovalHandler(deps.Approvals)

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			// 管理员登录后注册可指定角色
			auth.POST("/register", middleware.OptionalAuth(deps.DB), authHandler.Register)
			auth.POST("/login", limiter, authHandler.Login)
			auth.POST("/forgot-password", limiter, authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/profile", jwtAuth, authHandler.GetProfile)
			auth.PUT("/profile", jwtAuth, authHandler.UpdateProfile)
		}

		authorized := v1.Group("")
		authorized.Use(jwtAuth)
		{
			expenses := authorized.Group("/expenses")
			{
				expenses.GET("", expenseHandler.List)
				expenses.POST("", expenseHandler.Create)
				expenses.GET("/stats", expenseHandler.Stats)
				expenses.GET("/export", exportHandler.Export)
				expenses.GET("/:id", expenseHandler.Get)
				expenses.PUT("/:id", expenseHandler.Update)
				expenses.DELETE("/:id", expenseHandler.Delete)
				expenses.POST("/:id/submit", expenseHandler.Submit)
			}

			categories := authorized.Group("/categories")
			{
				categories.GET("", categoryHandler.List)
				categories.GET("/:id", categoryHandler.Get)
				editors := middleware.RequireRoles(models.RoleAdmin, models.RoleEditor)
				categories.POST("", editors, categoryHandler.Create)
				categories.PUT("/:id", editors, categoryHandler.Update)
				categories.DELETE("/:id", adminOnly, categoryHandler.Delete)
				categories.POST("/seed-defaults", adminOnly, categoryHandler.SeedDefaults)
			}

			approvals := authorized.Group("/approvals")
			{
				approvals.GET("/pending", approvalHandler.ListPending)
				approvals.GET("/stats", approvalHandler.Stats)
				approvals.GET("/admin/overdue", adminOnly, approvalHandler.ListOverdue)
				approvals.POST("/admin/send-reminders", adminOnly, approvalHandler.SendReminders)
				approvals.GET("/:id", approvalHandler.Get)
				approvals.POST("/:id/approve", approvalHandler.Approve)
				approvals.POST("/:id/reject", approvalHandler.Reject)
				approvals.POST("/:id/delegate", approvalHandler.Delegate)
			}

			users := authorized.Group("/users")
			{
				users.GET("", adminOnly, userHandler.List)
				users.GET("/admin/stats", adminOnly, userHandler.Stats)
				users.PUT("/:id", adminOnly, userHandler.Update)
				users.DELETE("/:id", adminOnly, userHandler.Delete)
				// 本人或管理员，由 service 判断
				users.GET("/profile/:id", userHandler.Get)
				users.PUT("/profile/:id/password", userHandler.ChangePassword)
			}
		}
	}

	r.NoRoute(func(c *gin.Context) {
		api.Error(c, http.StatusNotFound, service.KindNotFound, "Route not found.")
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
