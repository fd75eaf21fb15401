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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "reels",
		Short:        "reels - short-form video generator",
		SilenceUsage: true,
	}
	root.AddCommand(newRenderCmd(), newServeCmd(), newWorkerCmd(), newVersionCmd(), newDiagnoseCmd())
	return root
}

// bootstrap loads config, opens the database and resolves ffmpeg. Commands
// that render or serve run it first.
func bootstrap() error {
	log.InitLogger()
	if !config.LoadConfig() {
		return errConfig
	}
	if err := config.CheckConfig(); err != nil {
		log.GetLogger().Error("加载配置失败", zap.Error(err))
		return err
	}
	storage.InitDB()
	if count, err := storage.MarkStaleTasks(); err != nil {
		log.GetLogger().Warn("Failed to mark stale tasks", zap.Error(err))
	} else if count > 0 {
		log.GetLogger().Info("Marked stale tasks as failed", zap.Int64("count", count))
	}
	return deps.CheckDependency(config.Conf.App.FfmpegPath, config.Conf.App.FfprobePath, config.Conf.Render.FontPath)
}

func shutdown() {
	_ = storage.CloseDB()
	_ = log.GetLogger().Sync()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the in-process task runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bootstrap(); err != nil {
				return err
			}
			defer shutdown()
			return server.StartBackend(cmd.Context())
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume video tasks from the redis queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bootstrap(); err != nil {
				return err
			}
			defer shutdown()
			return server.StartWorker(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func newDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Print runtime paths and dependency status",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printDiagnose(cmd.OutOrStdout())
		},
	}
}
