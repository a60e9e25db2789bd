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
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"screening-platform/internal/screening"
	"screening-platform/pkg/config"
	pkgerrors "screening-platform/pkg/errors"
)

const defaultQueueKey = "screening:jobs"

// RedisQueue Redis list 实现：LPUSH 入队、BRPOP 原子出队（阻塞），参考生产后端。
// BRPOP 保证同一元素全局只被一个 Worker 弹出。
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue 创建 Redis 队列并探活
func NewRedisQueue(cfg config.QueueConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	key := cfg.Key
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue 实现 Queue
func (q *RedisQueue) Enqueue(ctx context.Context, job *screening.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	return nil
}

// DequeueBlocking 实现 Queue；BRPOP 阻塞至 timeout，超时返回 ErrNoJob
func (q *RedisQueue) DequeueBlocking(ctx context.Context, timeout time.Duration) (*screening.Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	// BRPOP 返回 [key, value]
	if len(res) != 2 {
		return nil, ErrNoJob
	}
	var job screening.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Depth 实现 Queue
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	return n, nil
}

// Close 实现 Queue
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
