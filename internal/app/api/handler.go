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
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"screening-platform/internal/queue"
	"screening-platform/internal/resultstore"
	"screening-platform/internal/screening"
	"screening-platform/pkg/errors"
	"screening-platform/pkg/log"
	"screening-platform/pkg/metrics"
)

// Handler 筛选 API 的 HTTP Handler（Producer 侧：入队与查询，不执行 Job）
type Handler struct {
	results  resultstore.Store
	jobQueue queue.Queue
	logger   *log.Logger
}

// NewHandler 创建 Handler
func NewHandler(results resultstore.Store, jobQueue queue.Queue, logger *log.Logger) *Handler {
	return &Handler{
		results:  results,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// CreateScreeningRequest 提交筛选请求
type CreateScreeningRequest struct {
	CandidateRef   string `json:"candidate_ref"`
	JobDescription string `json:"job_description"`
}

// screeningView Job 状态的对外表示（status 用字符串而非枚举数值）
type screeningView struct {
	JobID           string    `json:"job_id"`
	CandidateRef    string    `json:"candidate_ref"`
	Status          string    `json:"status"`
	AttemptCount    int       `json:"attempt_count"`
	LastError       string    `json:"last_error,omitempty"`
	CancelRequested bool      `json:"cancel_requested"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func viewOf(job *screening.Job) screeningView {
	return screeningView{
		JobID:           job.ID,
		CandidateRef:    job.CandidateRef,
		Status:          job.Status.String(),
		AttemptCount:    job.AttemptCount,
		LastError:       job.LastError,
		CancelRequested: !job.CancelRequestedAt.IsZero(),
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// CreateScreening 提交筛选 Job
// POST /api/screenings
func (h *Handler) CreateScreening(c context.Context, ctx *app.RequestContext) {
	var req CreateScreeningRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
		return
	}

	now := time.Now()
	job := &screening.Job{
		ID:                "job_" + uuid.NewString(),
		CandidateRef:      strings.TrimSpace(req.CandidateRef),
		JobDescriptionRef: strings.TrimSpace(req.JobDescription),
		Status:            screening.StatusQueued,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := job.Validate(); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.results.SaveJob(c, job); err != nil {
		h.logger.Error("保存 job 失败", "job_id", job.ID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "save job failed",
		})
		return
	}
	if err := h.jobQueue.Enqueue(c, job); err != nil {
		h.logger.Error("job 入队失败", "job_id", job.ID, "error", err)
		status := consts.StatusInternalServerError
		if errors.Is(err, queue.ErrQueueUnavailable) {
			status = consts.StatusServiceUnavailable
		}
		ctx.JSON(status, map[string]string{
			"error": "enqueue failed",
		})
		return
	}

	h.logger.Info("筛选 job 已入队", "job_id", job.ID, "candidate", job.CandidateRef)
	ctx.JSON(consts.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": job.Status.String(),
	})
}

// GetScreening 查询 Job 状态
// GET /api/screenings/:id
func (h *Handler) GetScreening(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")
	job, err := h.results.GetJob(c, jobID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "get job failed",
		})
		return
	}
	if job == nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "job not found",
		})
		return
	}
	ctx.JSON(consts.StatusOK, viewOf(job))
}

// GetVerdict 查询 Verdict；Job 未到成功终态时返回 404 并附当前状态
// GET /api/screenings/:id/verdict
func (h *Handler) GetVerdict(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")
	job, err := h.results.GetJob(c, jobID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "get job failed",
		})
		return
	}
	if job == nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "job not found",
		})
		return
	}

	verdict, err := h.results.GetVerdict(c, jobID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "get verdict failed",
		})
		return
	}
	if verdict == nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error":  "verdict not ready",
			"status": job.Status.String(),
		})
		return
	}
	ctx.JSON(consts.StatusOK, verdict)
}

// CancelScreening 请求取消 Job；已到终态的 Job 返回 409
// POST /api/screenings/:id/cancel
func (h *Handler) CancelScreening(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")
	job, err := h.results.GetJob(c, jobID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "get job failed",
		})
		return
	}
	if job == nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "job not found",
		})
		return
	}
	if job.Status.Terminal() {
		ctx.JSON(consts.StatusConflict, map[string]string{
			"error":  "job already terminal",
			"status": job.Status.String(),
		})
		return
	}

	if err := h.results.RequestCancel(c, jobID); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "request cancel failed",
		})
		return
	}
	h.logger.Info("已请求取消 job", "job_id", jobID)
	ctx.JSON(consts.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": job.Status.String(),
	})
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Metrics Prometheus 指标导出
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "gather metrics failed",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
