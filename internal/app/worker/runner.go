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
	"encoding/json"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"screening-platform/internal/agent/pec"
	"screening-platform/internal/queue"
	"screening-platform/internal/resultstore"
	"screening-platform/internal/retrieval"
	"screening-platform/internal/screening"
	"screening-platform/pkg/errors"
	"screening-platform/pkg/log"
	"screening-platform/pkg/metrics"
	"screening-platform/pkg/tracing"
)

// cancelPollInterval 取消标记轮询间隔
const cancelPollInterval = 500 * time.Millisecond

// maxRetryBackoff 单次重试等待上限
const maxRetryBackoff = 30 * time.Second

// RunnerOptions Runner 运行参数
type RunnerOptions struct {
	Concurrency    int
	DequeueTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
}

// Runner 消费队列中的筛选 Job 并执行完整流水线：
// 三跳检索 → PEC 状态机 → Verdict 写回。
type Runner struct {
	workerID string
	jobQueue queue.Queue
	results  resultstore.Store
	engine   *retrieval.Engine
	machine  *pec.Machine
	notifier Notifier
	opts     RunnerOptions
	logger   *log.Logger

	wg sync.WaitGroup
}

// NewRunner 创建 Runner
func NewRunner(workerID string, jobQueue queue.Queue, results resultstore.Store, engine *retrieval.Engine, machine *pec.Machine, notifier Notifier, opts RunnerOptions, logger *log.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.DequeueTimeout <= 0 {
		opts.DequeueTimeout = 5 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Runner{
		workerID: workerID,
		jobQueue: jobQueue,
		results:  results,
		engine:   engine,
		machine:  machine,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Start 启动 Concurrency 个拉取循环
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.opts.Concurrency; i++ {
		r.wg.Add(1)
		go r.loop(ctx)
	}
}

// Stop 等待所有在执行的 Job 收尾
func (r *Runner) Stop() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := r.jobQueue.DequeueBlocking(ctx, r.opts.DequeueTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrNoJob) || ctx.Err() != nil {
				continue
			}
			r.logger.Error("出队失败", "error", err)
			time.Sleep(time.Second)
			continue
		}

		metrics.WorkerBusy.WithLabelValues(r.workerID).Inc()
		r.process(ctx, job)
		metrics.WorkerBusy.WithLabelValues(r.workerID).Dec()
	}
}

// process 执行单个 Job 的完整尝试预算。
// 可重试错误按指数退避重试到 MaxAttempts；终态错误立即失败。
func (r *Runner) process(ctx context.Context, job *screening.Job) {
	logger := r.logger.WithJob(job.ID)
	start := time.Now()

	if err := job.Validate(); err != nil {
		logger.Error("job 校验失败", "error", err)
		r.markFailed(ctx, job, job.AttemptCount, err)
		r.observeTerminal(job, start, screening.StatusFailed, err)
		return
	}

	var err error
	attempt := job.AttemptCount
	for attempt < r.opts.MaxAttempts {
		attempt++
		if recErr := r.results.RecordAttempt(ctx, job.ID, attempt); recErr != nil {
			logger.Error("记录执行次数失败", "error", recErr)
		}
		err = r.executeOnce(ctx, job, attempt, logger)
		if err == nil {
			metrics.JobAttempts.Observe(float64(attempt))
			r.observeTerminal(job, start, screening.StatusSucceeded, nil)
			return
		}
		if errors.Is(err, pec.ErrCancelled) {
			if !r.cancelRequested(job.ID) {
				// 进程退出打断的 Job 保持 running，由孤儿清理重新入队
				logger.Info("job 被关闭打断，等待重新入队", "attempt", attempt)
				return
			}
			logger.Info("job 已取消", "attempt", attempt)
			r.markFailed(ctx, job, attempt, pec.ErrCancelled)
			metrics.JobTotal.WithLabelValues("cancelled").Inc()
			metrics.JobFailTotal.WithLabelValues("cancelled").Inc()
			metrics.JobDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
			return
		}
		if !errors.IsRetryable(err) {
			logger.Error("job 执行失败（不可重试）", "attempt", attempt, "error", err)
			break
		}

		logger.Warn("job 执行失败，准备重试", "attempt", attempt, "error", err)
		if recErr := r.results.RecordFailure(ctx, job.ID, attempt, err.Error()); recErr != nil {
			logger.Error("记录失败尝试失败", "error", recErr)
		}
		if attempt >= r.opts.MaxAttempts {
			break
		}
		if !r.sleepBackoff(ctx, attempt) {
			return
		}
	}

	r.markFailed(ctx, job, attempt, err)
	metrics.JobAttempts.Observe(float64(attempt))
	r.observeTerminal(job, start, screening.StatusFailed, err)
}

// sleepBackoff 指数退避加抖动；ctx 取消时返回 false
func (r *Runner) sleepBackoff(ctx context.Context, attempt int) bool {
	backoff := r.opts.RetryBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	if jitter := int64(backoff) / 4; jitter > 0 {
		backoff += time.Duration(rand.Int63n(jitter))
	}

	select {
	case <-time.After(backoff):
		return true
	case <-ctx.Done():
		return false
	}
}

// executeOnce 单次完整执行：检索三跳、状态机、Verdict 写回。
// 任一环节失败都让本次尝试整体失败，由 process 决定是否重试。
func (r *Runner) executeOnce(ctx context.Context, job *screening.Job, attempt int, logger *log.Logger) error {
	jobCtx, span := tracing.StartJobSpan(ctx, job.ID, job.CandidateRef)
	defer span.End()

	// 取消轮询：外部 RequestCancel 后尽快让状态机在迁移边界停下
	jobCtx, cancel := context.WithCancel(jobCtx)
	defer cancel()
	stopPoll := r.watchCancel(jobCtx, job.ID, cancel, logger)
	defer stopPoll()

	if err := r.results.UpdateStatus(jobCtx, job.ID, screening.StatusRunning); err != nil {
		return errors.Wrap(err, "更新状态为 running 失败")
	}

	jd := job.JobDescriptionRef
	chunks, err := r.engine.BroadSearch(jobCtx, job.CandidateRef, jd)
	if err != nil {
		return r.resolveCancel(jobCtx, job.ID, errors.Wrap(err, "broad search 失败"))
	}
	if len(chunks) == 0 {
		return errors.Wrapf(errors.ErrValidationFailure, "候选人 %s 无可检索简历内容", job.CandidateRef)
	}

	filtered, err := r.engine.AgenticFilter(jobCtx, jd, chunks)
	if err != nil {
		return r.resolveCancel(jobCtx, job.ID, errors.Wrap(err, "agentic filter 失败"))
	}
	if filtered.Unfiltered {
		logger.Warn("过滤降级，使用未过滤的检索结果", "chunks", len(filtered.Chunks))
	}

	gap, err := r.engine.GapAnalysis(jobCtx, jd, filtered.Chunks)
	if err != nil {
		return r.resolveCancel(jobCtx, job.ID, errors.Wrap(err, "gap analysis 失败"))
	}
	gapJSON, _ := json.Marshal(gap)

	outcome, err := r.machine.Run(jobCtx, pec.Input{
		JobID:          job.ID,
		JobDescription: jd,
		ResumeText:     joinChunks(filtered.Chunks),
		GapContext:     string(gapJSON),
	})
	if err != nil {
		return r.resolveCancel(jobCtx, job.ID, err)
	}

	verdict := buildVerdict(job.ID, outcome)
	if err := r.results.WriteVerdict(jobCtx, verdict); err != nil {
		return errors.Wrap(err, "写入 verdict 失败")
	}
	if err := r.results.UpdateStatus(jobCtx, job.ID, screening.StatusSucceeded); err != nil {
		return errors.Wrap(err, "更新状态为 succeeded 失败")
	}

	logger.Info("job 执行成功",
		"attempt", attempt,
		"score", verdict.Score,
		"iterations", verdict.IterationsUsed,
		"unverified", verdict.Unverified)
	r.notifier.VerdictReady(ctx, job, verdict)
	return nil
}

// watchCancel 周期性检查结果存储的取消标记，命中后取消 job 上下文。
// 返回的函数用于停止轮询。
func (r *Runner) watchCancel(ctx context.Context, jobID string, cancel context.CancelFunc, logger *log.Logger) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := r.results.GetJob(ctx, jobID)
				if err != nil {
					logger.Warn("轮询取消标记失败", "error", err)
					continue
				}
				if job != nil && !job.CancelRequestedAt.IsZero() {
					logger.Info("检测到取消请求")
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// resolveCancel 区分"被取消"与普通失败：ctx 因取消请求结束时统一上报 ErrCancelled
func (r *Runner) resolveCancel(ctx context.Context, jobID string, err error) error {
	if ctx.Err() != nil && r.cancelRequested(jobID) {
		return pec.ErrCancelled
	}
	return err
}

// cancelRequested 查询结果存储中该 Job 是否被外部请求取消
func (r *Runner) cancelRequested(jobID string) bool {
	job, err := r.results.GetJob(context.Background(), jobID)
	return err == nil && job != nil && !job.CancelRequestedAt.IsZero()
}

func (r *Runner) markFailed(ctx context.Context, job *screening.Job, attempt int, cause error) {
	lastError := "unknown"
	if cause != nil {
		lastError = cause.Error()
	}
	if err := r.results.RecordFailure(ctx, job.ID, attempt, lastError); err != nil {
		r.logger.Error("记录失败尝试失败", "job_id", job.ID, "error", err)
	}
	if err := r.results.UpdateStatus(ctx, job.ID, screening.StatusFailed); err != nil {
		r.logger.Error("更新状态为 failed 失败", "job_id", job.ID, "error", err)
	}
}

func (r *Runner) observeTerminal(job *screening.Job, start time.Time, status screening.JobStatus, cause error) {
	metrics.JobTotal.WithLabelValues(status.String()).Inc()
	metrics.JobDuration.WithLabelValues(status.String()).Observe(time.Since(start).Seconds())
	if status == screening.StatusFailed {
		metrics.JobFailTotal.WithLabelValues(failReason(cause)).Inc()
	}
}

func failReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrValidationFailure):
		return "validation"
	case errors.Is(err, errors.ErrProviderError):
		return "provider"
	case errors.Is(err, errors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errors.ErrTransientInfra):
		return "transient"
	default:
		return "other"
	}
}

// buildVerdict 将状态机终态产物折叠为对外 Verdict
func buildVerdict(jobID string, outcome *pec.Outcome) *screening.Verdict {
	verdict := &screening.Verdict{
		JobID:          jobID,
		IterationsUsed: outcome.IterationsUsed,
		Unverified:     outcome.Unverified,
		CreatedAt:      time.Now(),
	}
	if outcome.Draft == nil {
		return verdict
	}
	if s := outcome.Draft.Screening; s != nil {
		verdict.Score = s.FitScore
		verdict.MatchedSkills = s.MatchingSkills
		verdict.MissingSkills = s.MissingSkills
		verdict.Rationale = s.Reasoning
	}
	if q := outcome.Draft.Questions; q != nil {
		verdict.InterviewQuestions = q.Questions
	}
	if a := outcome.Draft.Assessment; a != nil {
		verdict.AssessmentTasks = a.Tasks
	}
	return verdict
}

func joinChunks(chunks []screening.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// DefaultWorkerID 读取 WORKER_ID 环境变量，缺省用主机名
func DefaultWorkerID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "worker-unknown"
	}
	return hostname
}
