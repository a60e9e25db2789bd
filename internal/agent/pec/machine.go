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

package pec

import (
	"context"
	"fmt"
	"time"

	"screening-platform/pkg/log"
	"screening-platform/pkg/metrics"
	"screening-platform/pkg/tracing"
)

// CancelCheck 在每次节点迁移边界调用；返回 true 表示外部已请求取消
type CancelCheck func(ctx context.Context) (bool, error)

// RefineHook 在 Refine 回边触发时调用，供外部观测迭代中的 Job（如状态看板）
type RefineHook func(ctx context.Context, jobID string)

// Input 状态机输入
type Input struct {
	JobID          string
	JobDescription string
	ResumeText     string
	GapContext     string // 检索阶段差距报告的文本摘要，可为空
}

// Outcome 状态机终态产物
type Outcome struct {
	Plan           *Plan
	Draft          *Draft
	CriticFeedback string
	IterationsUsed int
	// Unverified 表示迭代预算内 Critic 未通过，草稿按未验证产出
	Unverified bool
}

// Machine PEC 状态机。迁移关系固定:
//
//	Plan → Execute → Critique → Finalize
//	Critique → Execute (Refine，仅当未通过且迭代数未达上限)
type Machine struct {
	agents        *Agents
	logger        *log.Logger
	maxIterations int
	cancelCheck   CancelCheck
	refineHook    RefineHook
}

// NewMachine 创建状态机；maxIterations <= 0 时默认 3。
// cancelCheck 与 refineHook 均可为 nil。
func NewMachine(agents *Agents, logger *log.Logger, maxIterations int, cancelCheck CancelCheck, refineHook RefineHook) *Machine {
	if maxIterations <= 0 {
		maxIterations = 3
	}
	return &Machine{
		agents:        agents,
		logger:        logger,
		maxIterations: maxIterations,
		cancelCheck:   cancelCheck,
		refineHook:    refineHook,
	}
}

// Run 驱动状态机直到 Finalize。取消请求在迁移边界生效，返回 ErrCancelled。
func (m *Machine) Run(ctx context.Context, input Input) (*Outcome, error) {
	logger := m.logger.WithJob(input.JobID)
	state := &State{JobID: input.JobID}
	node := NodePlan

	for {
		if err := m.checkCancel(ctx); err != nil {
			return nil, err
		}

		next, err := m.step(ctx, node, state, input, logger)
		if err != nil {
			return nil, err
		}
		if node == NodeFinalize {
			return &Outcome{
				Plan:           state.Plan,
				Draft:          state.Draft,
				CriticFeedback: state.CriticFeedback,
				IterationsUsed: state.IterationCount,
				Unverified:     state.Unverified,
			}, nil
		}
		node = next
	}
}

// step 执行单个节点并返回后继节点。迁移在此处穷举。
func (m *Machine) step(ctx context.Context, node Node, state *State, input Input, logger *log.Logger) (Node, error) {
	nodeCtx, span := tracing.StartNodeSpan(ctx, input.JobID, node.String())
	defer span.End()

	start := time.Now()
	var next Node
	var err error

	switch node {
	case NodePlan:
		next, err = m.runPlan(nodeCtx, state, input)
	case NodeExecute:
		next, err = m.runExecute(nodeCtx, state, input)
	case NodeCritique:
		next, err = m.runCritique(nodeCtx, state, input)
	case NodeFinalize:
		next = NodeFinalize
	default:
		return 0, fmt.Errorf("非法节点: %d", node)
	}

	duration := time.Since(start)
	metrics.NodeDuration.WithLabelValues(node.String()).Observe(duration.Seconds())
	if err != nil {
		logger.Error("节点执行失败",
			"node", node.String(), "duration", duration, "error", err)
		return 0, err
	}
	logger.Info("节点完成",
		"node", node.String(), "next", next.String(),
		"iteration", state.IterationCount, "duration", duration)
	return next, nil
}

func (m *Machine) runPlan(ctx context.Context, state *State, input Input) (Node, error) {
	plan, err := m.agents.PlanEvaluation(ctx, input.JobDescription, input.ResumeText)
	if err != nil {
		return 0, err
	}
	state.Plan = plan
	return NodeExecute, nil
}

// runExecute Screener → Interviewer → Assessor 顺次产出完整草稿。
// 每进入一次即消耗一次迭代。
func (m *Machine) runExecute(ctx context.Context, state *State, input Input) (Node, error) {
	state.IterationCount++

	screening, err := m.agents.ScreenResume(ctx, input.JobDescription, input.ResumeText, input.GapContext, state.CriticFeedback)
	if err != nil {
		return 0, err
	}
	relatedSkills := m.agents.LookupRelatedSkills(ctx, screening.MissingSkills)
	questions, err := m.agents.GenerateQuestions(ctx, input.JobDescription, input.ResumeText, relatedSkills)
	if err != nil {
		return 0, err
	}
	assessment, err := m.agents.CreateAssessment(ctx, input.JobDescription)
	if err != nil {
		return 0, err
	}

	state.Draft = &Draft{
		Screening:     screening,
		Questions:     questions,
		Assessment:    assessment,
		RelatedSkills: relatedSkills,
	}
	return NodeCritique, nil
}

func (m *Machine) runCritique(ctx context.Context, state *State, input Input) (Node, error) {
	critique, err := m.agents.CritiqueOutputs(ctx, input.JobDescription, state.Draft)
	if err != nil {
		return 0, err
	}
	state.CriticFeedback = critique.Feedback

	if critique.Passed {
		return NodeFinalize, nil
	}
	// Refine 回边：仅当迭代预算未耗尽
	if state.IterationCount < m.maxIterations {
		metrics.RefineTotal.Inc()
		if m.refineHook != nil {
			m.refineHook(ctx, state.JobID)
		}
		return NodeExecute, nil
	}
	// 预算耗尽：强制收束，草稿按未验证产出
	state.Unverified = true
	return NodeFinalize, nil
}

func (m *Machine) checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	if m.cancelCheck == nil {
		return nil
	}
	cancelled, err := m.cancelCheck(ctx)
	if err != nil {
		// 取消查询失败不阻断筛选，只记录
		m.logger.Warn("取消状态查询失败", "error", err)
		return nil
	}
	if cancelled {
		return ErrCancelled
	}
	return nil
}
