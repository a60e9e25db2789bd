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

import "time"

// Chunk 检索产出的简历片段，Hop1 产出后不可变，仅在单个 Job 的处理内有效
type Chunk struct {
	SourceRef string  `json:"source_ref"`
	Text      string  `json:"text"`
	RankScore float64 `json:"rank_score"`
}

// Verdict 单候选人对单 JD 的最终筛选结论；成功终态时产出一次，写入后不可变
type Verdict struct {
	JobID          string   `json:"job_id"`
	Score          float64  `json:"score"` // 0.0 ~ 1.0
	MatchedSkills  []string `json:"matched_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Rationale      string   `json:"rationale"`
	IterationsUsed int      `json:"iterations_used"`
	// Unverified 为 true 表示达 max_iterations 后强制定稿，Critic 未真正通过
	Unverified bool `json:"unverified"`
	// 深评估补充输出（面试题与实操考核），报告方消费
	InterviewQuestions []string  `json:"interview_questions,omitempty"`
	AssessmentTasks    []string  `json:"assessment_tasks,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasMissingSkill 报告 missing_skills 是否含指定技能（大小写不敏感由调用方保证规范化）
func (v *Verdict) HasMissingSkill(skill string) bool {
	for _, s := range v.MissingSkills {
		if s == skill {
			return true
		}
	}
	return false
}
