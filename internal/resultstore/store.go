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

package resultstore

import (
	"context"
	"fmt"
	"time"

	"screening-platform/internal/screening"
	"screening-platform/pkg/config"
)

// Store 结果存储：Job 状态记录 + Verdict。状态可随时被外部（看板等）只读查询；
// WriteVerdict 为以 job_id 为键的幂等 upsert（last-write-wins）。
type Store interface {
	// SaveJob 持久化 Job 记录（Producer 入队前调用）
	SaveJob(ctx context.Context, job *screening.Job) error
	// GetJob 按 job_id 查询；不存在返回 nil, nil
	GetJob(ctx context.Context, jobID string) (*screening.Job, error)
	// UpdateStatus 更新 Job 状态（仅持有该 Job 的 Worker 调用）
	UpdateStatus(ctx context.Context, jobID string, status screening.JobStatus) error
	// RecordAttempt 记录第 attemptCount 次执行开始；成功的 Job 终态时
	// attempt_count 等于实际执行次数
	RecordAttempt(ctx context.Context, jobID string, attemptCount int) error
	// RecordFailure 记录一次失败尝试：attempt_count 与 last_error
	RecordFailure(ctx context.Context, jobID string, attemptCount int, lastError string) error
	// WriteVerdict 幂等 upsert Verdict；重复投递重算出等价结论时直接覆盖
	WriteVerdict(ctx context.Context, verdict *screening.Verdict) error
	// GetVerdict 按 job_id 查询 Verdict；不存在返回 nil, nil
	GetVerdict(ctx context.Context, jobID string) (*screening.Verdict, error)
	// RequestCancel 外部请求取消；Worker 在状态迁移边界检查并尽快停止
	RequestCancel(ctx context.Context, jobID string) error
	// ListStaleRunning 返回 Running 超过 olderThan 的 job_id，维护循环用于孤儿回收
	ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]string, error)
	// Close 释放连接
	Close() error
}

// New 根据配置创建结果存储
func New(cfg config.ResultStoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg)
	case "postgres":
		return NewPostgresStore(context.Background(), cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported result store type: %s", cfg.Type)
	}
}
