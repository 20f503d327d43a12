// Package logger 统一初始化 slog，debug 模式输出文本，release 模式输出 JSON。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup 按运行模式创建 logger 并设为默认
func Setup(mode string) *slog.Logger {
	return SetupWithWriter(mode, os.Stdout)
}

// SetupWithWriter 同 Setup，可指定输出
func SetupWithWriter(mode string, w io.Writer) *slog.Logger {
	var h slog.Handler
	switch mode {
	case "release":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

// Err 错误字段
//
//	slog.Error("send mail failed", logger.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
