// Package server wires the HTTP API, the task dispatcher and the render
// service together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reels-generator/config"
	"reels-generator/internal/handler"
	"reels-generator/internal/queue"
	"reels-generator/internal/router"
	"reels-generator/internal/service"
	"reels-generator/internal/taskrunner"
	"reels-generator/log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type dispatcher interface {
	handler.Dispatcher
	Close()
}

type queueDispatcher struct {
	*queue.Queue
}

func (q queueDispatcher) Close() {
	if err := q.Queue.Close(); err != nil {
		log.GetLogger().Warn("close queue client", zap.Error(err))
	}
}

// newDispatcher picks the redis queue when it is enabled and the in-process
// runner otherwise.
func newDispatcher(svc *service.Service) dispatcher {
	if config.Conf.Queue.Enabled {
		log.GetLogger().Info("dispatching video tasks through redis", zap.String("addr", config.Conf.Queue.RedisAddr))
		return queueDispatcher{queue.NewQueue(queue.ConfigFromApp(config.Conf.Queue))}
	}
	cfg := taskrunner.DefaultConfig()
	if config.Conf.App.VideoConcurrency > 0 {
		cfg.Concurrency = config.Conf.App.VideoConcurrency
	}
	return taskrunner.New(svc, cfg)
}

func NewEngine(hdl *handler.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	router.SetupRouter(engine, hdl)
	return engine
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.GetLogger().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// StartBackend serves the API until ctx is canceled.
func StartBackend(ctx context.Context) error {
	svc := service.NewService()
	defer svc.Close()

	disp := newDispatcher(svc)
	defer disp.Close()

	engine := NewEngine(handler.NewHandler(svc, disp))
	addr := fmt.Sprintf("%s:%d", config.Conf.Server.Host, config.Conf.Server.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Info("服务启动 server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.GetLogger().Info("服务关闭 server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// StartWorker consumes video tasks from redis until ctx is canceled.
func StartWorker(ctx context.Context) error {
	if !config.Conf.Queue.Enabled {
		return errors.New("queue is disabled; set [queue] enabled = true")
	}
	svc := service.NewService()
	defer svc.Close()

	q := queue.NewQueue(queue.ConfigFromApp(config.Conf.Queue))
	defer q.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- queue.StartWorker(q, svc)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		q.Server().Shutdown()
		return nil
	}
}
