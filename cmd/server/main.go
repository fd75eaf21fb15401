package main

import (
	"context"
	"os"
	"os/signal"
	"reels-generator/config"
	"reels-generator/internal/deps"
	"reels-generator/internal/server"
	"reels-generator/internal/storage"
	"reels-generator/log"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	log.InitLogger()
	defer log.GetLogger().Sync()

	var err error
	if !config.LoadConfig() {
		return
	}

	if err = config.CheckConfig(); err != nil {
		log.GetLogger().Error("加载配置失败", zap.Error(err))
		return
	}

	storage.InitDB()
	defer storage.CloseDB()

	// tasks left processing by a crashed process can never finish
	if count, err := storage.MarkStaleTasks(); err != nil {
		log.GetLogger().Warn("Failed to mark stale tasks", zap.Error(err))
	} else if count > 0 {
		log.GetLogger().Info("Marked stale tasks as failed", zap.Int64("count", count))
	}

	if err = deps.CheckDependency(config.Conf.App.FfmpegPath, config.Conf.App.FfprobePath, config.Conf.Render.FontPath); err != nil {
		log.GetLogger().Error("依赖环境准备失败", zap.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err = server.StartBackend(ctx); err != nil {
		log.GetLogger().Error("后端服务启动失败", zap.Error(err))
		os.Exit(1)
	}
}
