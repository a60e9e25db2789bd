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

// Package pec 实现 Planner → Executor → Critic 循环状态机。
// 节点与迁移显式枚举，Refine 回边有迭代上限，不依赖任何图编排框架。
package pec

import (
	"screening-platform/pkg/errors"
)

// Node 状态机节点
type Node int

const (
	NodePlan Node = iota
	NodeExecute
	NodeCritique
	NodeFinalize
)

func (n Node) String() string {
	switch n {
	case NodePlan:
		return "plan"
	case NodeExecute:
		return "execute"
	case NodeCritique:
		return "critique"
	case NodeFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// ErrCancelled 外部取消导致状态机提前停止
var ErrCancelled = errors.New("job cancelled")

// Plan Planner 产出的自动化评估计划
type Plan struct {
	Steps []string `json:"steps"`
	Logic string   `json:"logic"`
}

// ScreeningResult Screener 产出的评估草稿
type ScreeningResult struct {
	FitScore       float64  `json:"fit_score"` // 0~1 匹配度
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Reasoning      string   `json:"reasoning"`
}

// InterviewQuestions Interviewer 产出的技术面试题
type InterviewQuestions struct {
	Questions  []string `json:"questions"`
	Difficulty string   `json:"difficulty"`
}

// SkillAssessment Assessor 产出的实操任务设计
type SkillAssessment struct {
	Tasks              []string `json:"tasks"`
	EvaluationCriteria string   `json:"evaluation_criteria"`
}

// Critique Critic 的验证结论
type Critique struct {
	Passed   bool     `json:"critique_passed"`
	Feedback string   `json:"critic_feedback"`
	Issues   []string `json:"issues"`
}

// Draft Executor 一轮产出的完整草稿
type Draft struct {
	Screening  *ScreeningResult
	Questions  *InterviewQuestions
	Assessment *SkillAssessment
	// RelatedSkills 缺失技能的确定性工具查询结果，随草稿一起产出
	RelatedSkills map[string][]string
}

// State 状态机运行时状态。仅 Machine.Run 内部可变更。
type State struct {
	JobID          string
	Plan           *Plan
	Draft          *Draft
	CriticFeedback string
	IterationCount int
	Unverified     bool
}
