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
	"sync"
	"time"

	"screening-platform/internal/screening"
	"screening-platform/pkg/errors"
)

// MemoryStore 内存实现，开发与测试用
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]*screening.Job
	verdicts map[string]*screening.Verdict
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*screening.Job),
		verdicts: make(map[string]*screening.Verdict),
	}
}

func (s *MemoryStore) SaveJob(ctx context.Context, job *screening.Job) error {
	if job == nil || job.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "job id 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*screening.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, jobID string, status screening.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	job.Status = status
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, jobID string, attemptCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	job.AttemptCount = attemptCount
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RecordFailure(ctx context.Context, jobID string, attemptCount int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	job.AttemptCount = attemptCount
	job.LastError = lastError
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) WriteVerdict(ctx context.Context, verdict *screening.Verdict) error {
	if verdict == nil || verdict.JobID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "verdict job_id 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *verdict
	s.verdicts[verdict.JobID] = &cp
	return nil
}

func (s *MemoryStore) GetVerdict(ctx context.Context, jobID string) (*screening.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verdicts[jobID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) RequestCancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "job %s", jobID)
	}
	now := time.Now()
	job.CancelRequestedAt = now
	job.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-olderThan)
	var ids []string
	for id, job := range s.jobs {
		if (job.Status == screening.StatusRunning || job.Status == screening.StatusRefining) &&
			job.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }
