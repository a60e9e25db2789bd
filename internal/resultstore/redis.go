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
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"screening-platform/internal/screening"
	"screening-platform/pkg/config"
	"screening-platform/pkg/errors"
)

const (
	jobKeyPrefix     = "screening:job:"
	verdictKeyPrefix = "screening:verdict:"
	runningZSetKey   = "screening:running"
)

// RedisStore Redis 实现：Job 记录存 hash，Verdict 存 JSON 串。
// Running 中的 job 同时登记到 sorted set（score 为最后更新时间），
// 维护循环用 ZRANGEBYSCORE 扫描孤儿。
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.ResultStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "连接 Redis 失败: %v", err)
	}
	return &RedisStore{client: client}, nil
}

func jobKey(jobID string) string     { return jobKeyPrefix + jobID }
func verdictKey(jobID string) string { return verdictKeyPrefix + jobID }

func (s *RedisStore) SaveJob(ctx context.Context, job *screening.Job) error {
	if job == nil || job.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "job id 不能为空")
	}
	fields := map[string]interface{}{
		"id":                  job.ID,
		"candidate_ref":       job.CandidateRef,
		"job_description_ref": job.JobDescriptionRef,
		"status":              job.Status.String(),
		"attempt_count":       job.AttemptCount,
		"created_at":          job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":          job.UpdatedAt.Format(time.RFC3339Nano),
		"last_error":          job.LastError,
	}
	if !job.CancelRequestedAt.IsZero() {
		fields["cancel_requested_at"] = job.CancelRequestedAt.Format(time.RFC3339Nano)
	}
	if err := s.client.HSet(ctx, jobKey(job.ID), fields).Err(); err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "写入 job 失败: %v", err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*screening.Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "读取 job 失败: %v", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return jobFromFields(fields)
}

func jobFromFields(fields map[string]string) (*screening.Job, error) {
	attempts, _ := strconv.Atoi(fields["attempt_count"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	job := &screening.Job{
		ID:                fields["id"],
		CandidateRef:      fields["candidate_ref"],
		JobDescriptionRef: fields["job_description_ref"],
		Status:            screening.ParseJobStatus(fields["status"]),
		AttemptCount:      attempts,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		LastError:         fields["last_error"],
	}
	if raw, ok := fields["cancel_requested_at"]; ok && raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			job.CancelRequestedAt = t
		}
	}
	return job, nil
}

func (s *RedisStore) UpdateStatus(ctx context.Context, jobID string, status screening.JobStatus) error {
	key := jobKey(jobID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "查询 job 失败: %v", err)
	}
	if exists == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	now := time.Now()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "status", status.String(), "updated_at", now.Format(time.RFC3339Nano))
	if status == screening.StatusRunning || status == screening.StatusRefining {
		pipe.ZAdd(ctx, runningZSetKey, redis.Z{Score: float64(now.Unix()), Member: jobID})
	} else {
		pipe.ZRem(ctx, runningZSetKey, jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "更新状态失败: %v", err)
	}
	return nil
}

func (s *RedisStore) RecordAttempt(ctx context.Context, jobID string, attemptCount int) error {
	key := jobKey(jobID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "查询 job 失败: %v", err)
	}
	if exists == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	err = s.client.HSet(ctx, key,
		"attempt_count", attemptCount,
		"updated_at", time.Now().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "记录执行次数失败: %v", err)
	}
	return nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, jobID string, attemptCount int, lastError string) error {
	key := jobKey(jobID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "查询 job 失败: %v", err)
	}
	if exists == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	err = s.client.HSet(ctx, key,
		"attempt_count", attemptCount,
		"last_error", lastError,
		"updated_at", time.Now().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "记录失败信息失败: %v", err)
	}
	return nil
}

func (s *RedisStore) WriteVerdict(ctx context.Context, verdict *screening.Verdict) error {
	if verdict == nil || verdict.JobID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "verdict job_id 不能为空")
	}
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("序列化 verdict 失败: %w", err)
	}
	// SET 覆盖写即为 last-write-wins upsert
	if err := s.client.Set(ctx, verdictKey(verdict.JobID), data, 0).Err(); err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "写入 verdict 失败: %v", err)
	}
	return nil
}

func (s *RedisStore) GetVerdict(ctx context.Context, jobID string) (*screening.Verdict, error) {
	data, err := s.client.Get(ctx, verdictKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "读取 verdict 失败: %v", err)
	}
	var verdict screening.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil, fmt.Errorf("解析 verdict 失败: %w", err)
	}
	return &verdict, nil
}

func (s *RedisStore) RequestCancel(ctx context.Context, jobID string) error {
	key := jobKey(jobID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "查询 job 失败: %v", err)
	}
	if exists == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	now := time.Now().Format(time.RFC3339Nano)
	err = s.client.HSet(ctx, key, "cancel_requested_at", now, "updated_at", now).Err()
	if err != nil {
		return errors.Wrapf(errors.ErrTransientInfra, "记录取消请求失败: %v", err)
	}
	return nil
}

func (s *RedisStore) ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	ids, err := s.client.ZRangeByScore(ctx, runningZSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "扫描 stale job 失败: %v", err)
	}
	return ids, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
