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
	"fmt"
	"strings"
	"testing"
	"time"

	"screening-platform/internal/agent/pec"
	"screening-platform/internal/model/embedding"
	"screening-platform/internal/model/llm"
	"screening-platform/internal/queue"
	"screening-platform/internal/resultstore"
	"screening-platform/internal/retrieval"
	"screening-platform/internal/screening"
	"screening-platform/internal/storage/vector"
	"screening-platform/internal/tool/builtin"
	"screening-platform/internal/tool/registry"
	"screening-platform/pkg/config"
	"screening-platform/pkg/errors"
	"screening-platform/pkg/log"
)

const (
	testPlanJSON       = `{"steps": ["语义分析", "差距识别"], "logic": "纯文本评估"}`
	testScreeningJSON  = `{"fit_score": 0.82, "matching_skills": ["golang"], "missing_skills": ["kubernetes"], "reasoning": "后端经验扎实"}`
	testQuestionsJSON  = `{"questions": ["什么是 goroutine 泄漏"], "difficulty": "senior"}`
	testAssessmentJSON = `{"tasks": ["实现一个限流器"], "evaluation_criteria": "正确性与并发安全"}`
	testCritiquePass   = `{"critique_passed": true, "critic_feedback": "", "issues": []}`
	testGapJSON        = `{"candidate_summary": "资深后端", "matching_skills": ["golang"], "missing_skills": ["kubernetes"], "preliminary_score": 0.7}`
)

// happyPathResponses 单次完整执行的 LLM 响应序列：
// 2 chunk 的相关性判定 → 差距分析 → Plan/Execute/Critique 五次调用
func happyPathResponses() []llm.ScriptedResponse {
	return []llm.ScriptedResponse{
		{Content: "YES"},
		{Content: "YES"},
		{Content: testGapJSON},
		{Content: testPlanJSON},
		{Content: testScreeningJSON},
		{Content: testQuestionsJSON},
		{Content: testAssessmentJSON},
		{Content: testCritiquePass},
	}
}

func testRunner(t *testing.T, responses ...llm.ScriptedResponse) (*Runner, resultstore.Store) {
	t.Helper()

	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	embedder := embedding.NewLocalEmbedder(16)
	store := vector.NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &vector.Index{Name: "cand-1", Dimension: 16}); err != nil {
		t.Fatalf("Create index failed: %v", err)
	}
	texts := []string{
		"五年 Golang 后端开发经验，熟悉分布式系统",
		"主导过支付网关的高可用改造",
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	vectors := make([]*vector.Vector, len(texts))
	for i, text := range texts {
		vectors[i] = &vector.Vector{ID: fmt.Sprintf("chunk-%d", i), Values: vecs[i], Text: text}
	}
	if err := store.Add(ctx, "cand-1", vectors); err != nil {
		t.Fatalf("Add vectors failed: %v", err)
	}

	client := llm.NewScriptedClient(responses...)
	engine := retrieval.NewEngine(store, embedder, client, logger, config.RetrievalConfig{TopK: 5})

	toolReg := registry.New()
	builtin.RegisterAll(toolReg)
	results := resultstore.NewMemoryStore()
	machine := pec.NewMachine(pec.NewAgents(client, toolReg), logger, 3, nil,
		func(ctx context.Context, jobID string) {
			if err := results.UpdateStatus(ctx, jobID, screening.StatusRefining); err != nil {
				t.Errorf("refine hook UpdateStatus failed: %v", err)
			}
		})

	runner := NewRunner(
		"test-worker",
		queue.NewMemoryQueue(),
		results,
		engine,
		machine,
		NewLogNotifier(logger, 0.75),
		RunnerOptions{Concurrency: 1, MaxAttempts: 3, RetryBackoff: time.Millisecond, DequeueTimeout: time.Second},
		logger,
	)
	return runner, results
}

func testJob(id string) *screening.Job {
	return &screening.Job{
		ID:                id,
		CandidateRef:      "cand-1",
		JobDescriptionRef: "Go backend engineer, kubernetes required",
		Status:            screening.StatusQueued,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func TestRunner_ProcessSuccess(t *testing.T) {
	runner, results := testRunner(t, happyPathResponses()...)
	ctx := context.Background()

	job := testJob("job-ok")
	if err := results.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	runner.process(ctx, job)

	stored, err := results.GetJob(ctx, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Status != screening.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", stored.Status)
	}

	verdict, err := results.GetVerdict(ctx, job.ID)
	if err != nil || verdict == nil {
		t.Fatalf("GetVerdict failed: %v", err)
	}
	if verdict.Score != 0.82 {
		t.Fatalf("unexpected score: %f", verdict.Score)
	}
	if verdict.Unverified {
		t.Fatal("accepted verdict must not be unverified")
	}
	if verdict.IterationsUsed != 1 {
		t.Fatalf("expected 1 iteration, got %d", verdict.IterationsUsed)
	}
	if len(verdict.InterviewQuestions) != 1 {
		t.Fatalf("expected interview questions in verdict, got %v", verdict.InterviewQuestions)
	}
	if !verdict.HasMissingSkill("kubernetes") {
		t.Fatalf("expected kubernetes in missing skills, got %v", verdict.MissingSkills)
	}
}

func TestRunner_RetryableFailureThenSuccess(t *testing.T) {
	// 第一次尝试在差距分析阶段被限流，第二次尝试完整成功
	responses := []llm.ScriptedResponse{
		{Content: "YES"},
		{Content: "YES"},
		{Err: errors.Wrap(errors.ErrRateLimited, "provider throttled")},
	}
	responses = append(responses, happyPathResponses()...)

	runner, results := testRunner(t, responses...)
	ctx := context.Background()

	job := testJob("job-retry")
	if err := results.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	runner.process(ctx, job)

	stored, err := results.GetJob(ctx, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Status != screening.StatusSucceeded {
		t.Fatalf("expected succeeded after retry, got %s (last error: %s)", stored.Status, stored.LastError)
	}
	if stored.AttemptCount != 2 {
		t.Fatalf("expected attempt_count 2 after retry, got %d", stored.AttemptCount)
	}
	if !strings.Contains(stored.LastError, "throttled") {
		t.Fatalf("expected throttle error recorded, got %q", stored.LastError)
	}
	if verdict, _ := results.GetVerdict(ctx, job.ID); verdict == nil {
		t.Fatal("expected verdict after successful retry")
	}
}

func TestRunner_TerminalFailureNoRetry(t *testing.T) {
	// Provider 返回终态错误：不重试，直接失败
	responses := []llm.ScriptedResponse{
		{Content: "YES"},
		{Content: "YES"},
		{Err: errors.Wrap(errors.ErrProviderError, "model deprecated")},
	}
	runner, results := testRunner(t, responses...)
	ctx := context.Background()

	job := testJob("job-terminal")
	if err := results.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	runner.process(ctx, job)

	stored, _ := results.GetJob(ctx, job.ID)
	if stored.Status != screening.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.AttemptCount != 1 {
		t.Fatalf("terminal error must not retry, attempts: %d", stored.AttemptCount)
	}
}

func TestRunner_ValidationFailure(t *testing.T) {
	runner, results := testRunner(t)
	ctx := context.Background()

	job := testJob("job-bad")
	job.CandidateRef = "  "
	if err := results.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	runner.process(ctx, job)

	stored, _ := results.GetJob(ctx, job.ID)
	if stored.Status != screening.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if !strings.Contains(stored.LastError, "candidate_ref") {
		t.Fatalf("expected validation error recorded, got %q", stored.LastError)
	}
}

func TestRunner_EmptyCorpusIsTerminal(t *testing.T) {
	runner, results := testRunner(t)
	ctx := context.Background()

	job := testJob("job-empty")
	job.CandidateRef = "cand-missing"
	if err := results.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	runner.process(ctx, job)

	stored, _ := results.GetJob(ctx, job.ID)
	if stored.Status != screening.StatusFailed {
		t.Fatalf("expected failed for empty corpus, got %s", stored.Status)
	}
	if stored.AttemptCount != 1 {
		t.Fatalf("empty corpus must not retry, attempts: %d", stored.AttemptCount)
	}
}
