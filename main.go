package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"expensehub/cache"
	"expensehub/config"
	"expensehub/database"
	"expensehub/logger"
	"expensehub/middleware"
	"expensehub/router"
	"expensehub/service"
)

// @title 报销审批系统 API
// @version 1.0
// @description 报销单提交、审批流转、类别管理与导出接口
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const version = "expensehub v1.0.0"

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 8080 或 :8080")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	if err := run(); err != nil {
		slog.Error("server exited", logger.Err(err))
		os.Exit(1)
	}
}

func run() error {
	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Setup(cfg.Server.Mode)

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}
	config.PrintConfig(cfg)

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("close database failed", logger.Err(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer store.Close()

	middleware.InitJWT(cfg)

	mailer := service.NewEmailService(&cfg.Email)
	approvals := service.NewApprovalService(db, mailer, cfg.Approval.DueDays)
	r := router.SetupRouter(cfg, router.Deps{
		DB:         db,
		Logger:     log,
		Auth:       service.NewAuthService(db, mailer, cfg.Server.FrontendURL),
		Users:      service.NewUserService(db),
		Categories: service.NewCategoryService(db, store),
		Expenses:   service.NewExpenseService(db, approvals),
		Approvals:  approvals,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			"addr", cfg.Server.Port,
			"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
