package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sekolahdigital/opr/internal/bootstrap"
	"github.com/sekolahdigital/opr/internal/httpapi"
	"github.com/sekolahdigital/opr/internal/pkg/config"
)

func main() {
	var cfgFile string
	var listenAddr string
	flag.StringVar(&cfgFile, "config", "", "配置文件路径")
	flag.StringVar(&listenAddr, "listen", "", "监听地址 (默认 127.0.0.1:<config port>)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 首次运行落一份默认配置，便于用户修改
	if cfgFile == "" {
		if cfgPath, err := config.DefaultConfigPath(); err == nil {
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				_ = config.WriteFile(cfgPath, config.Default())
			}
		}
	}

	core, err := bootstrap.NewCore(ctx, cfgFile)
	if err != nil {
		slog.Error("启动失败", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	slog.Info("OPR 服务启动中...", "name", core.Cfg.App.Name, "version", core.Cfg.App.Version)

	srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: listenAddr})
	if err != nil {
		slog.Error("启动本地 API 失败", "error", err)
		os.Exit(1)
	}
	slog.Info("OPR 服务已启动", "base_url", srv.BaseURL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("收到退出信号，正在关闭...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("关闭 HTTP 服务失败", "error", err)
	}
	slog.Info("已退出")
}
