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

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"screening-platform/internal/screening"
	"screening-platform/pkg/config"
)

var (
	// ErrNoJob 阻塞出队超时且无任务；非错误路径，调用方继续轮询
	ErrNoJob = errors.New("no job available")
	// ErrQueueUnavailable 队列后端不可达；属 TransientInfra
	ErrQueueUnavailable = errors.New("queue unavailable")
)

// Queue 持久任务队列：Producer 入队，Worker 原子出队。
// 语义：至少一次投递；DequeueBlocking 对同一 Job 全局只成功一次（原子移除）；
// FIFO 为尽力而为，不做跨 Job 顺序承诺。
type Queue interface {
	// Enqueue 追加 Job 并立即返回；后端不可达时返回 ErrQueueUnavailable
	Enqueue(ctx context.Context, job *screening.Job) error
	// DequeueBlocking 移除并返回最旧的待处理 Job，最多阻塞 timeout；
	// 超时无任务返回 ErrNoJob（不是错误状态）
	DequeueBlocking(ctx context.Context, timeout time.Duration) (*screening.Job, error)
	// Depth 当前待处理 Job 数，供监控；后端不支持时返回 0, nil
	Depth(ctx context.Context) (int64, error)
	// Close 释放连接
	Close() error
}

// New 根据配置创建队列
func New(cfg config.QueueConfig) (Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryQueue(), nil
	case "redis":
		return NewRedisQueue(cfg)
	case "postgres":
		return NewPostgresQueue(context.Background(), cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", cfg.Type)
	}
}
