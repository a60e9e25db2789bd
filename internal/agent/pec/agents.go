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
	"encoding/json"
	"fmt"

	"screening-platform/internal/model/llm"
	"screening-platform/internal/tool/registry"
	"screening-platform/pkg/utils"
)

// Agents PEC 各角色的提示词与解析。所有输出都要求严格 JSON，
// 解析失败视为一次失败的执行（由上层决定重试或终态）。
type Agents struct {
	client llm.Client
	tools  *registry.Registry
}

// NewAgents 创建 PEC Agent 集合
func NewAgents(client llm.Client, tools *registry.Registry) *Agents {
	return &Agents{client: client, tools: tools}
}

func (a *Agents) generate(ctx context.Context, prompt string, maxTokens int, out interface{}) error {
	answer, err := a.client.GenerateWithContext(ctx, prompt, llm.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return err
	}
	raw, err := utils.ExtractJSONObject(answer)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("解析 Agent 输出失败: %w", err)
	}
	return nil
}

// PlanEvaluation Planner：产出纯文本评估的自动化步骤计划。
// 可用工具的 Schema 注入提示词，计划中可引用工具产出。
func (a *Agents) PlanEvaluation(ctx context.Context, jobDescription, resumeText string) (*Plan, error) {
	toolSchemas := "[]"
	if a.tools != nil {
		if schemas, err := a.tools.SchemasForLLM(); err == nil {
			toolSchemas = string(schemas)
		}
	}

	prompt := fmt.Sprintf(`你是自动化招聘系统的架构师，为候选人规划一次纯文本评估。

约束:
- 不能安排会议、电话或现场面试
- 不能人工背调
- 只能规划: 语义分析、技能差距识别、面试题生成、实操任务设计

可用工具（计划步骤可引用）:
%s

职位要求:
%s

简历:
%s

输出 JSON（不要额外文字）:
{"steps": ["步骤"], "logic": "该计划的依据"}`, toolSchemas, jobDescription, resumeText)

	var plan Plan
	if err := a.generate(ctx, prompt, 512, &plan); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("planner: 计划没有任何步骤")
	}
	return &plan, nil
}

// LookupRelatedSkills 对缺失技能逐个调用确定性技能分类工具，
// 产出 技能→关联技能 映射。工具未注册或单项查询失败时跳过该技能。
func (a *Agents) LookupRelatedSkills(ctx context.Context, missingSkills []string) map[string][]string {
	if a.tools == nil || len(missingSkills) == 0 {
		return nil
	}
	t, ok := a.tools.Get("search_skill_framework")
	if !ok {
		return nil
	}

	related := make(map[string][]string, len(missingSkills))
	for _, skill := range missingSkills {
		result, err := t.Execute(ctx, map[string]any{"skill": skill})
		if err != nil || result.Err != "" {
			continue
		}
		var names []string
		if err := json.Unmarshal([]byte(result.Content), &names); err != nil {
			continue
		}
		related[skill] = names
	}
	if len(related) == 0 {
		return nil
	}
	return related
}

// ScreenResume Screener：对照 JD 评估简历。Refine 时带上 Critic 反馈，
// 模型必须针对性修正而不是重新发挥。
func (a *Agents) ScreenResume(ctx context.Context, jobDescription, resumeText, gapContext, feedback string) (*ScreeningResult, error) {
	feedbackContext := ""
	if feedback != "" {
		feedbackContext = fmt.Sprintf("重要: 你上一轮的输出被驳回。\n驳回意见: %q\n必须针对性修正。\n", feedback)
	}
	gapSection := ""
	if gapContext != "" {
		gapSection = fmt.Sprintf("检索阶段的差距分析（参考）:\n%s\n", gapContext)
	}

	prompt := fmt.Sprintf(`你是技术筛选 AI。对照职位要求评估简历。
%s%s
职位要求:
%s

简历:
%s

输出 JSON（不要额外文字）:
{"fit_score": 0.0, "matching_skills": ["技能"], "missing_skills": ["技能"], "reasoning": "分析"}
fit_score 为 0~1 的匹配度。技能列表必须严格来自文本，不得臆造。`,
		feedbackContext, gapSection, jobDescription, resumeText)

	var result ScreeningResult
	if err := a.generate(ctx, prompt, 768, &result); err != nil {
		return nil, fmt.Errorf("screener: %w", err)
	}
	if result.FitScore < 0 {
		result.FitScore = 0
	}
	if result.FitScore > 1 {
		result.FitScore = 1
	}
	return &result, nil
}

// GenerateQuestions Interviewer：围绕缺失技能生成技术面试题。
// relatedSkills 为确定性工具对缺失技能的分类查询结果，注入提示词供出题覆盖。
func (a *Agents) GenerateQuestions(ctx context.Context, jobDescription, resumeText string, relatedSkills map[string][]string) (*InterviewQuestions, error) {
	skillSection := ""
	if len(relatedSkills) > 0 {
		if payload, err := json.Marshal(relatedSkills); err == nil {
			skillSection = fmt.Sprintf("缺失技能及其关联技能（确定性查询结果，出题时覆盖）:\n%s\n\n", payload)
		}
	}

	prompt := fmt.Sprintf(`你是技术面试官 AI。针对候选人的技能缺口生成 5-7 个技术面试题。
不要问"自我介绍"之类的通用 HR 问题。
%s
职位要求:
%s

简历:
%s

输出 JSON（不要额外文字）:
{"questions": ["问题"], "difficulty": "难度"}`, skillSection, jobDescription, resumeText)

	var questions InterviewQuestions
	if err := a.generate(ctx, prompt, 768, &questions); err != nil {
		return nil, fmt.Errorf("interviewer: %w", err)
	}
	return &questions, nil
}

// CreateAssessment Assessor：设计实操任务与评估标准
func (a *Agents) CreateAssessment(ctx context.Context, jobDescription string) (*SkillAssessment, error) {
	prompt := fmt.Sprintf(`你是技术负责人 AI。为该职位设计 1-2 个简短的实操编码或系统设计任务。

职位要求:
%s

输出 JSON（不要额外文字）:
{"tasks": ["任务"], "evaluation_criteria": "评估要点"}`, jobDescription)

	var assessment SkillAssessment
	if err := a.generate(ctx, prompt, 512, &assessment); err != nil {
		return nil, fmt.Errorf("assessor: %w", err)
	}
	return &assessment, nil
}

// CritiqueOutputs Critic：验证草稿是否有幻觉或逻辑错误。
// 只因事实性错误驳回，不因风格驳回。
func (a *Agents) CritiqueOutputs(ctx context.Context, jobDescription string, draft *Draft) (*Critique, error) {
	screeningJSON, _ := json.Marshal(draft.Screening)
	questionsJSON, _ := json.Marshal(draft.Questions)

	prompt := fmt.Sprintf(`你是质量验证者（务实的 Critic），职责是拦截幻觉与逻辑错误。

职位要求:
%s

筛选输出:
%s

面试题:
%s

验证标准:
1. fit_score 是否合理
2. 面试题是否技术相关
3. 是否存在事实性幻觉

重要: 不要因为风格偏好驳回，只因事实性错误驳回。

输出 JSON（不要额外文字）:
{"critique_passed": true, "critic_feedback": "修正建议", "issues": ["具体问题"]}`,
		jobDescription, screeningJSON, questionsJSON)

	var critique Critique
	if err := a.generate(ctx, prompt, 512, &critique); err != nil {
		return nil, fmt.Errorf("critic: %w", err)
	}
	return &critique, nil
}
