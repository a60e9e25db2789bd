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
	"strings"
	"testing"

	"screening-platform/internal/model/llm"
	"screening-platform/internal/tool/builtin"
	"screening-platform/internal/tool/registry"
	"screening-platform/pkg/errors"
	"screening-platform/pkg/log"
)

const (
	planJSON       = `{"steps": ["语义分析", "差距识别"], "logic": "纯文本评估"}`
	questionsJSON  = `{"questions": ["什么是 goroutine 泄漏", "如何设计幂等接口"], "difficulty": "senior"}`
	assessmentJSON = `{"tasks": ["实现一个限流器"], "evaluation_criteria": "正确性与并发安全"}`
	critiquePass   = `{"critique_passed": true, "critic_feedback": "", "issues": []}`
	critiqueFail   = `{"critique_passed": false, "critic_feedback": "fit_score 与缺失技能数量矛盾", "issues": ["评分不一致"]}`
)

func screeningJSON(score float64) string {
	if score == 0.8 {
		return `{"fit_score": 0.8, "matching_skills": ["golang", "docker"], "missing_skills": ["kubernetes"], "reasoning": "整体匹配但缺少容器编排经验"}`
	}
	return `{"fit_score": 0.5, "matching_skills": ["golang"], "missing_skills": ["kubernetes", "grpc"], "reasoning": "部分匹配"}`
}

func testMachine(t *testing.T, maxIterations int, cancelCheck CancelCheck, responses ...llm.ScriptedResponse) (*Machine, *llm.ScriptedClient) {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	reg := registry.New()
	builtin.RegisterAll(reg)
	client := llm.NewScriptedClient(responses...)
	return NewMachine(NewAgents(client, reg), logger, maxIterations, cancelCheck, nil), client
}

func testInput() Input {
	return Input{
		JobID:          "job-1",
		JobDescription: "Go backend engineer, kubernetes required",
		ResumeText:     "五年 Golang 与 Docker 经验",
	}
}

func TestMachine_HappyPath(t *testing.T) {
	machine, _ := testMachine(t, 3, nil,
		llm.ScriptedResponse{Content: planJSON},
		llm.ScriptedResponse{Content: screeningJSON(0.8)},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiquePass},
	)

	outcome, err := machine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.IterationsUsed != 1 {
		t.Fatalf("expected 1 iteration, got %d", outcome.IterationsUsed)
	}
	if outcome.Unverified {
		t.Fatal("accepted draft must not be unverified")
	}
	if outcome.Draft.Screening.FitScore != 0.8 {
		t.Fatalf("unexpected score: %f", outcome.Draft.Screening.FitScore)
	}
	if len(outcome.Draft.Screening.MissingSkills) != 1 || outcome.Draft.Screening.MissingSkills[0] != "kubernetes" {
		t.Fatalf("expected kubernetes missing, got %v", outcome.Draft.Screening.MissingSkills)
	}
	if outcome.Plan == nil || len(outcome.Plan.Steps) == 0 {
		t.Fatal("expected plan in outcome")
	}
}

func TestMachine_ExecuteConsultsSkillTool(t *testing.T) {
	// Executor 对缺失技能调用确定性分类工具，结果注入出题提示词并随草稿产出
	machine, client := testMachine(t, 3, nil,
		llm.ScriptedResponse{Content: planJSON},
		llm.ScriptedResponse{Content: `{"fit_score": 0.6, "matching_skills": ["golang"], "missing_skills": ["python"], "reasoning": "缺少脚本能力"}`},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiquePass},
	)

	outcome, err := machine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	related, ok := outcome.Draft.RelatedSkills["python"]
	if !ok || len(related) == 0 {
		t.Fatalf("expected related skills for python in draft, got %v", outcome.Draft.RelatedSkills)
	}
	found := false
	for _, name := range related {
		if name == "Django" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Django among related skills, got %v", related)
	}

	// 调用序: plan, screening, questions, assessment, critique
	calls := client.Calls()
	if len(calls) != 5 {
		t.Fatalf("expected 5 llm calls, got %d", len(calls))
	}
	if !strings.Contains(calls[2], "Django") || !strings.Contains(calls[2], "关联技能") {
		t.Fatal("expected tool lookup results in interviewer prompt")
	}
}

func TestMachine_RefineThenPass(t *testing.T) {
	machine, client := testMachine(t, 3, nil,
		llm.ScriptedResponse{Content: planJSON},
		// 第一轮
		llm.ScriptedResponse{Content: screeningJSON(0.5)},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiqueFail},
		// Refine 第二轮
		llm.ScriptedResponse{Content: screeningJSON(0.8)},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiquePass},
	)

	outcome, err := machine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.IterationsUsed != 2 {
		t.Fatalf("expected 2 iterations, got %d", outcome.IterationsUsed)
	}
	if outcome.Unverified {
		t.Fatal("second draft passed critique, must be verified")
	}

	// Refine 轮的 Screener 提示词必须携带 Critic 反馈
	calls := client.Calls()
	refineScreenerPrompt := calls[5]
	if !strings.Contains(refineScreenerPrompt, "fit_score 与缺失技能数量矛盾") {
		t.Fatalf("refine screener prompt missing critic feedback:\n%s", refineScreenerPrompt)
	}
}

func TestMachine_RefineHookFires(t *testing.T) {
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	reg := registry.New()
	builtin.RegisterAll(reg)
	client := llm.NewScriptedClient(
		llm.ScriptedResponse{Content: planJSON},
		llm.ScriptedResponse{Content: screeningJSON(0.5)},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiqueFail},
		llm.ScriptedResponse{Content: screeningJSON(0.8)},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiquePass},
	)

	var hookJobs []string
	machine := NewMachine(NewAgents(client, reg), logger, 3, nil,
		func(ctx context.Context, jobID string) {
			hookJobs = append(hookJobs, jobID)
		})

	outcome, err := machine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.IterationsUsed != 2 {
		t.Fatalf("expected 2 iterations, got %d", outcome.IterationsUsed)
	}
	// Refine 回边只触发了一次，带本 Job 的 ID
	if len(hookJobs) != 1 || hookJobs[0] != "job-1" {
		t.Fatalf("expected one refine hook call for job-1, got %v", hookJobs)
	}
}

func TestMachine_IterationCapForcesUnverified(t *testing.T) {
	// 每轮 Critic 都驳回；5 次调用一轮（plan 只有首轮）
	responses := []llm.ScriptedResponse{{Content: planJSON}}
	for i := 0; i < 3; i++ {
		responses = append(responses,
			llm.ScriptedResponse{Content: screeningJSON(0.5)},
			llm.ScriptedResponse{Content: questionsJSON},
			llm.ScriptedResponse{Content: assessmentJSON},
			llm.ScriptedResponse{Content: critiqueFail},
		)
	}
	machine, _ := testMachine(t, 3, nil, responses...)

	outcome, err := machine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("iteration exhaustion must not be an error, got %v", err)
	}
	if outcome.IterationsUsed != 3 {
		t.Fatalf("expected exactly 3 iterations, got %d", outcome.IterationsUsed)
	}
	if !outcome.Unverified {
		t.Fatal("exhausted budget must yield unverified outcome")
	}
	if outcome.Draft == nil {
		t.Fatal("unverified outcome must still carry the last draft")
	}
}

func TestMachine_CancelAtBoundary(t *testing.T) {
	cancelled := false
	cancelCheck := func(ctx context.Context) (bool, error) { return cancelled, nil }

	machine, _ := testMachine(t, 3, cancelCheck,
		llm.ScriptedResponse{Content: planJSON},
		llm.ScriptedResponse{Content: screeningJSON(0.8)},
		llm.ScriptedResponse{Content: questionsJSON},
		llm.ScriptedResponse{Content: assessmentJSON},
		llm.ScriptedResponse{Content: critiquePass},
	)

	// 先验证未取消时正常跑通
	if _, err := machine.Run(context.Background(), testInput()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cancelled = true
	machine2, _ := testMachine(t, 3, cancelCheck, llm.ScriptedResponse{Content: planJSON})
	if _, err := machine2.Run(context.Background(), testInput()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestMachine_AgentErrorPropagates(t *testing.T) {
	machine, _ := testMachine(t, 3, nil,
		llm.ScriptedResponse{Content: planJSON},
		llm.ScriptedResponse{Err: errors.Wrap(errors.ErrRateLimited, "provider cooldown")},
	)

	_, err := machine.Run(context.Background(), testInput())
	if !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("expected rate limited error to propagate, got %v", err)
	}
}
