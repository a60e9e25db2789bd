// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"screening-platform/internal/queue"
	"screening-platform/internal/resultstore"
	"screening-platform/pkg/config"
	"screening-platform/pkg/log"
	"screening-platform/pkg/tracing"
)

// App API 应用（Producer 侧：装配路由、队列与结果存储，不执行 Job）
type App struct {
	config   *config.Config
	logger   *log.Logger
	results  resultstore.Store
	jobQueue queue.Queue
	router   *Router
	hertz    *server.Hertz

	tracerProvider *sdktrace.TracerProvider
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	results, err := resultstore.New(cfg.ResultStore)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}
	jobQueue, err := queue.New(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化队列失败: %w", err)
	}

	handler := NewHandler(results, jobQueue, logger)
	return &App{
		config:   cfg,
		logger:   logger,
		results:  results,
		jobQueue: jobQueue,
		router:   NewRouter(handler),
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与应用日志配置对齐
	output := os.Stdout
	if a.config.Log.File != "" {
		f, err := os.OpenFile(a.config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch a.config.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	if a.config.Monitoring.Tracing.Enable {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    a.config.Monitoring.Tracing.ServiceName,
			ExportEndpoint: a.config.Monitoring.Tracing.ExportEndpoint,
			Insecure:       a.config.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			a.logger.Warn("链路追踪初始化失败", "error", err)
		} else {
			a.tracerProvider = tp
			a.logger.Info("链路追踪已启用", "service_name", a.config.Monitoring.Tracing.ServiceName)
		}
	}

	a.hertz = a.router.Build(addr)
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.tracerProvider != nil {
		_ = a.tracerProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if err := a.jobQueue.Close(); err != nil {
		a.logger.Error("关闭队列失败", "error", err)
	}
	return a.results.Close()
}
