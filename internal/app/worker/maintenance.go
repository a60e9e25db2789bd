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
	"time"

	"screening-platform/internal/screening"
	"screening-platform/pkg/metrics"
	"screening-platform/pkg/utils"
)

const defaultStaleAfter = 10 * time.Minute

// startMaintenance 注册定时维护任务：孤儿 Job 清理与队列深度上报
func (a *App) startMaintenance(ctx context.Context) error {
	staleAfter := defaultStaleAfter
	if d, err := time.ParseDuration(a.config.Worker.StaleAfter); err == nil && d > 0 {
		staleAfter = d
	}
	spec := utils.CoalesceString(a.config.Worker.MaintenanceSpec, "@every 1m")

	_, err := a.cron.AddFunc(spec, func() {
		a.sweepStaleJobs(ctx, staleAfter)
		a.reportQueueDepth(ctx)
	})
	if err != nil {
		return err
	}

	a.cron.Start()
	return nil
}

// sweepStaleJobs 将长时间停留在 running 的孤儿 Job 重新入队。
// Worker 崩溃后 Job 不丢：依赖 at-least-once 语义与 Verdict 的幂等写回。
func (a *App) sweepStaleJobs(ctx context.Context, staleAfter time.Duration) {
	jobIDs, err := a.results.ListStaleRunning(ctx, staleAfter)
	if err != nil {
		a.logger.Error("扫描孤儿 job 失败", "error", err)
		return
	}

	for _, jobID := range jobIDs {
		job, err := a.results.GetJob(ctx, jobID)
		if err != nil || job == nil {
			continue
		}
		if !job.CancelRequestedAt.IsZero() {
			// 已请求取消的孤儿直接标记失败，不再重新入队
			if err := a.results.UpdateStatus(ctx, jobID, screening.StatusFailed); err != nil {
				a.logger.Error("标记取消孤儿失败", "job_id", jobID, "error", err)
			}
			continue
		}

		if err := a.results.UpdateStatus(ctx, jobID, screening.StatusQueued); err != nil {
			a.logger.Error("重置孤儿 job 状态失败", "job_id", jobID, "error", err)
			continue
		}
		job.Status = screening.StatusQueued
		if err := a.jobQueue.Enqueue(ctx, job); err != nil {
			a.logger.Error("孤儿 job 重新入队失败", "job_id", jobID, "error", err)
			continue
		}
		a.logger.Warn("孤儿 job 已重新入队", "job_id", jobID, "stale_after", staleAfter)
	}
}

func (a *App) reportQueueDepth(ctx context.Context) {
	depth, err := a.jobQueue.Depth(ctx)
	if err != nil {
		a.logger.Warn("查询队列深度失败", "error", err)
		return
	}
	metrics.QueueDepth.WithLabelValues("screening").Set(float64(depth))
}
