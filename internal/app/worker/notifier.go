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

	"screening-platform/internal/screening"
	"screening-platform/pkg/log"
)

// Notifier 在 Verdict 产出后通知下游（报告、告警等）
type Notifier interface {
	VerdictReady(ctx context.Context, job *screening.Job, verdict *screening.Verdict)
}

// LogNotifier 把通知写入结构化日志；高分候选人单独标记，方便下游告警规则匹配
type LogNotifier struct {
	logger    *log.Logger
	passScore float64
}

func NewLogNotifier(logger *log.Logger, passScore float64) *LogNotifier {
	if passScore <= 0 {
		passScore = 0.75
	}
	return &LogNotifier{logger: logger, passScore: passScore}
}

func (n *LogNotifier) VerdictReady(ctx context.Context, job *screening.Job, verdict *screening.Verdict) {
	logger := n.logger.WithJob(job.ID)
	if verdict.Score >= n.passScore && !verdict.Unverified {
		logger.Info("候选人通过筛选",
			"candidate", job.CandidateRef,
			"score", verdict.Score,
			"matched_skills", len(verdict.MatchedSkills),
			"passed", true)
		return
	}
	logger.Info("筛选结论已产出",
		"candidate", job.CandidateRef,
		"score", verdict.Score,
		"unverified", verdict.Unverified,
		"passed", false)
}
