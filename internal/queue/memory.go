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
	"sync"
	"time"

	"screening-platform/internal/screening"
)

// MemoryQueue 内存队列实现：互斥锁 + 信号 channel，单进程内 API 与 Worker 共享同一实例时有效
type MemoryQueue struct {
	mu      sync.Mutex
	pending []*screening.Job
	signal  chan struct{} // 入队通知，容量 1；tryPop 在队列未清空时补发
	closed  bool
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue 实现 Queue
func (q *MemoryQueue) Enqueue(ctx context.Context, job *screening.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueUnavailable
	}
	cp := *job
	q.pending = append(q.pending, &cp)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// DequeueBlocking 实现 Queue；出队对单个 Job 恰好成功一次（持锁取队首）
func (q *MemoryQueue) DequeueBlocking(ctx context.Context, timeout time.Duration) (*screening.Job, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if job := q.tryPop(); job != nil {
			return job, nil
		}
		select {
		case <-q.signal:
			// 有新任务，回到循环头竞争
		case <-deadline.C:
			return nil, ErrNoJob
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *MemoryQueue) tryPop() *screening.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	// 队列未清空则补一次信号：容量 1 的 channel 在并发入队时只存了一次唤醒，
	// 不补信号会让其余等待者睡满整个出队超时
	if len(q.pending) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return job
}

// Depth 实现 Queue
func (q *MemoryQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

// Close 实现 Queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
