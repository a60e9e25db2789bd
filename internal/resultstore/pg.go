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
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"screening-platform/internal/screening"
	"screening-platform/pkg/errors"
)

// PostgresStore Postgres 实现，表结构见 createResultTables
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "连接 Postgres 失败: %v", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.createResultTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createResultTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS screening_jobs (
			id                  TEXT PRIMARY KEY,
			candidate_ref       TEXT NOT NULL,
			job_description_ref TEXT NOT NULL,
			status              TEXT NOT NULL,
			attempt_count       INT NOT NULL DEFAULT 0,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL,
			last_error          TEXT NOT NULL DEFAULT '',
			cancel_requested_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_screening_jobs_status
			ON screening_jobs (status, updated_at);
		CREATE TABLE IF NOT EXISTS screening_verdicts (
			job_id     TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("初始化结果表失败: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveJob(ctx context.Context, job *screening.Job) error {
	if job == nil || job.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "job id 不能为空")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO screening_jobs
			(id, candidate_ref, job_description_ref, status, attempt_count, created_at, updated_at, last_error, cancel_requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			candidate_ref = EXCLUDED.candidate_ref,
			job_description_ref = EXCLUDED.job_description_ref,
			status = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			updated_at = EXCLUDED.updated_at,
			last_error = EXCLUDED.last_error,
			cancel_requested_at = EXCLUDED.cancel_requested_at
	`, job.ID, job.CandidateRef, job.JobDescriptionRef, job.Status.String(),
		job.AttemptCount, job.CreatedAt, job.UpdatedAt, job.LastError, nullableTime(job.CancelRequestedAt))
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "写入 job 失败: %v", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*screening.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, candidate_ref, job_description_ref, status, attempt_count,
		       created_at, updated_at, last_error, cancel_requested_at
		FROM screening_jobs WHERE id = $1
	`, jobID)
	var job screening.Job
	var statusStr string
	var cancelAt *time.Time
	err := row.Scan(&job.ID, &job.CandidateRef, &job.JobDescriptionRef, &statusStr,
		&job.AttemptCount, &job.CreatedAt, &job.UpdatedAt, &job.LastError, &cancelAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "读取 job 失败: %v", err)
	}
	job.Status = screening.ParseJobStatus(statusStr)
	if cancelAt != nil {
		job.CancelRequestedAt = *cancelAt
	}
	return &job, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, jobID string, status screening.JobStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE screening_jobs SET status = $2, updated_at = now() WHERE id = $1
	`, jobID, status.String())
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "更新状态失败: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, jobID string, attemptCount int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE screening_jobs SET attempt_count = $2, updated_at = now()
		WHERE id = $1
	`, jobID, attemptCount)
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "记录执行次数失败: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) RecordFailure(ctx context.Context, jobID string, attemptCount int, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE screening_jobs SET attempt_count = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`, jobID, attemptCount, lastError)
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "记录失败信息失败: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) WriteVerdict(ctx context.Context, verdict *screening.Verdict) error {
	if verdict == nil || verdict.JobID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "verdict job_id 不能为空")
	}
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("序列化 verdict 失败: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO screening_verdicts (job_id, payload, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at
	`, verdict.JobID, payload, verdict.CreatedAt)
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "写入 verdict 失败: %v", err)
	}
	return nil
}

func (s *PostgresStore) GetVerdict(ctx context.Context, jobID string) (*screening.Verdict, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM screening_verdicts WHERE job_id = $1
	`, jobID).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "读取 verdict 失败: %v", err)
	}
	var verdict screening.Verdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, fmt.Errorf("解析 verdict 失败: %w", err)
	}
	return &verdict, nil
}

func (s *PostgresStore) RequestCancel(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE screening_jobs SET cancel_requested_at = now(), updated_at = now() WHERE id = $1
	`, jobID)
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "记录取消请求失败: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM screening_jobs
		WHERE status IN ('running', 'refining') AND updated_at < now() - $1::interval
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "扫描 stale job 失败: %v", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrapf(errors.ErrTransientInfra, "扫描 stale job 失败: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
