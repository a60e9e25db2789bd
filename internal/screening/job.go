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

package screening

import (
	"strings"
	"time"

	"screening-platform/pkg/errors"
)

// JobStatus 筛选任务状态
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusRunning
	StatusRefining
	StatusSucceeded
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusRefining:
		return "refining"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseJobStatus 从字符串解析状态，未知返回 StatusQueued
func ParseJobStatus(s string) JobStatus {
	switch s {
	case "running":
		return StatusRunning
	case "refining":
		return StatusRefining
	case "succeeded":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	default:
		return StatusQueued
	}
}

// Terminal 报告状态是否为终态
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job 筛选任务实体：Producer 创建并入队，仅持有该 Job 的 Worker 可变更
type Job struct {
	ID                string    `json:"id"`
	CandidateRef      string    `json:"candidate_ref"`       // 候选人语料标识（chunk 集合归属）
	JobDescriptionRef string    `json:"job_description_ref"` // JD 文本或其存储标识
	Status            JobStatus `json:"status"`
	AttemptCount      int       `json:"attempt_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	LastError         string    `json:"last_error,omitempty"`
	// CancelRequestedAt 非零表示外部已请求取消；Worker 在状态迁移边界检查
	CancelRequestedAt time.Time `json:"cancel_requested_at,omitempty"`
}

// Validate 校验 Job 输入；不合法输入属于终态 ValidationFailure，不重试
func (j *Job) Validate() error {
	if j == nil {
		return errors.Wrap(errors.ErrValidationFailure, "job is nil")
	}
	if strings.TrimSpace(j.CandidateRef) == "" {
		return errors.Wrap(errors.ErrValidationFailure, "candidate_ref 为空")
	}
	if strings.TrimSpace(j.JobDescriptionRef) == "" {
		return errors.Wrap(errors.ErrValidationFailure, "job_description_ref 为空")
	}
	return nil
}
