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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"screening-platform/internal/screening"
	pkgerrors "screening-platform/pkg/errors"
)

const pgPollInterval = 200 * time.Millisecond

// PostgresQueue screening_queue 表实现，FOR UPDATE SKIP LOCKED 保证原子认领
type PostgresQueue struct {
	pool *pgxpool.Pool
}

// NewPostgresQueue 创建基于 PostgreSQL 的队列；pool 可与结果存储共用 DSN
func NewPostgresQueue(ctx context.Context, dsn string) (*PostgresQueue, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	return &PostgresQueue{pool: pool}, nil
}

// Enqueue 实现 Queue
func (q *PostgresQueue) Enqueue(ctx context.Context, job *screening.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.pool.Exec(ctx,
		`INSERT INTO screening_queue (job_id, payload, status) VALUES ($1, $2, 'pending')
		 ON CONFLICT (job_id) DO NOTHING`,
		job.ID, payload,
	)
	if err != nil {
		return pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	return nil
}

// DequeueBlocking 实现 Queue；无阻塞原语，轮询认领直到 timeout
func (q *PostgresQueue) DequeueBlocking(ctx context.Context, timeout time.Duration) (*screening.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := q.claimOne(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNoJob
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pgPollInterval):
		}
	}
}

// claimOne 原子认领一条 pending；无任务返回 nil, nil
func (q *PostgresQueue) claimOne(ctx context.Context) (*screening.Job, error) {
	var payload []byte
	err := q.pool.QueryRow(ctx,
		`WITH sel AS (
  SELECT job_id FROM screening_queue WHERE status = 'pending' ORDER BY enqueued_at LIMIT 1 FOR UPDATE SKIP LOCKED
)
UPDATE screening_queue SET status = 'claimed', claimed_at = now()
FROM sel WHERE screening_queue.job_id = sel.job_id
RETURNING screening_queue.payload`,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	var job screening.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Depth 实现 Queue
func (q *PostgresQueue) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM screening_queue WHERE status = 'pending'`,
	).Scan(&n)
	if err != nil {
		return 0, pkgerrors.Wrap(ErrQueueUnavailable, err.Error())
	}
	return n, nil
}

// Close 实现 Queue
func (q *PostgresQueue) Close() error {
	q.pool.Close()
	return nil
}
