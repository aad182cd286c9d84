package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"replaylab/internal/app"
	"replaylab/internal/config"
	"replaylab/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("REPLAYLAB_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	if cfg.App.LogPath != "" {
		logFile, err := logger.SetFileOutput(cfg.App.LogPath)
		if err != nil {
			log.Fatalf("初始化日志文件失败: %v", err)
		}
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，provider=%s）", cfg.App.Env, cfg.Data.Provider)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := application.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}
