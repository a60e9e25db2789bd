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

package worker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"screening-platform/internal/agent/pec"
	"screening-platform/internal/model/embedding"
	"screening-platform/internal/model/llm"
	"screening-platform/internal/queue"
	"screening-platform/internal/resultstore"
	"screening-platform/internal/retrieval"
	"screening-platform/internal/screening"
	"screening-platform/internal/storage/vector"
	"screening-platform/internal/tool/builtin"
	"screening-platform/internal/tool/registry"
	"screening-platform/pkg/config"
	"screening-platform/pkg/log"
	"screening-platform/pkg/metrics"
	"screening-platform/pkg/secrets"
	"screening-platform/pkg/utils"
)

// App Worker 应用：从队列取筛选 Job，跑三跳检索与 PEC 状态机，写回 Verdict
type App struct {
	config      *config.Config
	logger      *log.Logger
	jobQueue    queue.Queue
	results     resultstore.Store
	vectorStore vector.Store
	engine      *retrieval.Engine
	machine     *pec.Machine
	notifier    Notifier
	cron        *cron.Cron

	runner        *Runner
	metricsServer *http.Server
	cancel        context.CancelFunc
}

// NewApp 创建新的 Worker 应用
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	// 初始化队列与结果存储
	jobQueue, err := queue.New(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化队列失败: %w", err)
	}
	results, err := resultstore.New(cfg.ResultStore)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}

	// Secret 解析：api_key 支持 secret://NAME 形式，经 secrets.Store 取值
	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store 失败: %w", err)
	}

	// 向量存储与 Embedder
	vectorStore := vector.NewMemoryStore()
	embedProvider, embedCfg := resolveProvider(cfg.Model.Embedding.Providers, cfg.Model.Defaults.Embedding)
	embedKey, err := resolveAPIKey(secretStore, embedCfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("解析 embedding api key 失败: %w", err)
	}
	embedder, err := embedding.NewEmbedder(embedProvider, embedCfg.Model, embedKey, embedCfg.BaseURL, cfg.Vector.Dimension)
	if err != nil {
		return nil, fmt.Errorf("初始化 Embedder 失败: %w", err)
	}

	// LLM 客户端（全局限流）
	llmProvider, llmCfg := resolveProvider(cfg.Model.LLM.Providers, cfg.Model.Defaults.LLM)
	llmKey, err := resolveAPIKey(secretStore, llmCfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("解析 llm api key 失败: %w", err)
	}
	baseClient, err := llm.NewClient(llmProvider, llmCfg.Model, llmKey, llmCfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}
	rateLimiter := llm.NewLLMRateLimiter(cfg.RateLimits.LLM, nil)
	client := llm.NewRateLimitedClient(baseClient, rateLimiter)

	// 检索引擎与 PEC 状态机
	engine := retrieval.NewEngine(vectorStore, embedder, client, logger, cfg.Retrieval)
	toolReg := registry.New()
	builtin.RegisterAll(toolReg)
	agents := pec.NewAgents(client, toolReg)

	app := &App{
		config:      cfg,
		logger:      logger,
		jobQueue:    jobQueue,
		results:     results,
		vectorStore: vectorStore,
		engine:      engine,
		notifier:    NewLogNotifier(logger, cfg.Screening.PassScore),
		cron:        cron.New(),
	}

	// Refine 回边触发时把 Job 状态置为 refining，供外部看板观测迭代进度。
	// 取消经 Runner 的上下文轮询生效，状态机不带取消回调。
	app.machine = pec.NewMachine(agents, logger, cfg.Screening.MaxIterations, nil,
		func(ctx context.Context, jobID string) {
			if err := results.UpdateStatus(ctx, jobID, screening.StatusRefining); err != nil {
				logger.Warn("更新状态为 refining 失败", "job_id", jobID, "error", err)
			}
		})

	app.runner = NewRunner(
		DefaultWorkerID(),
		jobQueue,
		results,
		engine,
		app.machine,
		app.notifier,
		runnerOptions(cfg),
		logger,
	)

	return app, nil
}

// runnerOptions 从配置推导 Runner 参数，带合理默认
func runnerOptions(cfg *config.Config) RunnerOptions {
	opts := RunnerOptions{
		Concurrency:    utils.DefaultInt(cfg.Worker.Concurrency, 2),
		DequeueTimeout: 5 * time.Second,
		MaxAttempts:    utils.DefaultInt(cfg.Worker.MaxAttempts, 3),
		RetryBackoff:   time.Second,
	}
	if d, err := time.ParseDuration(cfg.Worker.DequeueTimeout); err == nil && d > 0 {
		opts.DequeueTimeout = d
	}
	if d, err := time.ParseDuration(cfg.Worker.RetryBackoff); err == nil && d > 0 {
		opts.RetryBackoff = d
	}
	return opts
}

// resolveAPIKey 解析 api_key；secret:// 前缀时从 secret store 取值，其余原样返回
func resolveAPIKey(store secrets.Store, key string) (string, error) {
	const scheme = "secret://"
	if !strings.HasPrefix(key, scheme) {
		return key, nil
	}
	return store.Get(context.Background(), strings.TrimPrefix(key, scheme))
}

// resolveProvider 取默认 provider 的配置；未配置时返回空配置走各客户端默认
func resolveProvider(providers map[string]config.ProviderConfig, name string) (string, config.ProviderConfig) {
	if name == "" {
		for n, c := range providers {
			return n, c
		}
		return "", config.ProviderConfig{}
	}
	return name, providers[name]
}

// Start 启动应用：Worker 拉取循环 + 定时维护
func (a *App) Start() error {
	a.logger.Info("启动 worker 应用",
		"concurrency", a.runner.opts.Concurrency,
		"max_attempts", a.runner.opts.MaxAttempts)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.runner.Start(ctx)

	if err := a.startMaintenance(ctx); err != nil {
		return fmt.Errorf("启动维护任务失败: %w", err)
	}
	a.startMetricsServer()

	a.logger.Info("worker 应用启动成功")
	return nil
}

// startMetricsServer 暴露 Worker 进程指标的抓取端点。
// Worker 无业务 HTTP 面，这里只起一个最小的 /metrics Listener。
func (a *App) startMetricsServer() {
	if !a.config.Monitoring.Prometheus.Enable || a.config.Monitoring.Prometheus.Port <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		if err := metrics.WritePrometheus(w); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	a.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Monitoring.Prometheus.Port),
		Handler: mux,
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("指标服务异常退出", "error", err)
		}
	}()
	a.logger.Info("指标服务已启动", "port", a.config.Monitoring.Prometheus.Port)
}

// Shutdown 关闭应用：停止拉取，等待在执行的 Job 收尾，释放连接
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("关闭 worker 应用")

	if a.cancel != nil {
		a.cancel()
	}
	a.runner.Stop()

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("关闭指标服务失败", "error", err)
		}
	}

	if err := a.jobQueue.Close(); err != nil {
		a.logger.Error("关闭队列失败", "error", err)
	}
	if err := a.results.Close(); err != nil {
		a.logger.Error("关闭结果存储失败", "error", err)
	}
	if err := a.vectorStore.Close(); err != nil {
		a.logger.Error("关闭向量存储失败", "error", err)
	}

	a.logger.Info("worker 应用关闭成功")
	return nil
}
