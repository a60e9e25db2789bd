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

// Package retrieval 实现候选人语料的三跳检索：
// Hop1 向量粗召回 → Hop2 Agentic 相关性过滤+去重 → Hop3 技能差距分析。
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"screening-platform/internal/model/embedding"
	"screening-platform/internal/model/llm"
	"screening-platform/internal/screening"
	"screening-platform/internal/storage/vector"
	"screening-platform/pkg/config"
	"screening-platform/pkg/log"
	"screening-platform/pkg/metrics"
	"screening-platform/pkg/utils"
)

// Engine 三跳检索引擎。索引名即候选人语料标识（Job.CandidateRef）。
type Engine struct {
	store    vector.Store
	embedder embedding.Embedder
	client   llm.Client
	logger   *log.Logger

	topK         int
	scoreMin     float64
	dupThreshold float64
}

// FilterResult Hop2 输出：有序 chunk 子集；Unfiltered 表示过滤降级（原样返回 Hop1 结果）
type FilterResult struct {
	Chunks     []screening.Chunk
	Unfiltered bool
}

// GapReport Hop3 输出：结构化技能差距分析
type GapReport struct {
	CandidateSummary string   `json:"candidate_summary"`
	MatchedSkills    []string `json:"matching_skills"`
	MissingSkills    []string `json:"missing_skills"`
	PreliminaryScore float64  `json:"preliminary_score"`
}

// NewEngine 创建检索引擎
func NewEngine(store vector.Store, embedder embedding.Embedder, client llm.Client, logger *log.Logger, cfg config.RetrievalConfig) *Engine {
	dup := cfg.DuplicateThreshold
	if dup <= 0 {
		dup = 0.9
	}
	return &Engine{
		store:        store,
		embedder:     embedder,
		client:       client,
		logger:       logger,
		topK:         utils.DefaultInt(cfg.TopK, 5),
		scoreMin:     cfg.ScoreThreshold,
		dupThreshold: dup,
	}
}

// BroadSearch Hop1：向量化查询并做相似度召回。
// 结果按相似度降序，同分按语料插入顺序，不修改任何状态。
func (e *Engine) BroadSearch(ctx context.Context, candidateRef, query string) ([]screening.Chunk, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("查询向量化返回 %d 个向量", len(vecs))
	}

	results, err := e.store.Search(ctx, candidateRef, vecs[0], &vector.SearchOptions{
		TopK:      e.topK,
		Threshold: e.scoreMin,
	})
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	chunks := make([]screening.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, screening.Chunk{
			SourceRef: r.ID,
			Text:      r.Text,
			RankScore: r.Score,
		})
	}
	metrics.RetrievalChunks.WithLabelValues("broad").Observe(float64(len(chunks)))
	return chunks, nil
}

// AgenticFilter Hop2：逐 chunk 让 LLM 判定与 JD 的相关性（YES/NO），
// 再做近重复剔除。输出保持 Hop1 相对次序。LLM 不可用时降级为原样返回，
// Unfiltered=true，筛选流程继续而不是失败。
func (e *Engine) AgenticFilter(ctx context.Context, jobDescription string, chunks []screening.Chunk) (*FilterResult, error) {
	if len(chunks) == 0 {
		return &FilterResult{}, nil
	}

	var kept []screening.Chunk
	for _, chunk := range chunks {
		relevant, err := e.judgeRelevance(ctx, jobDescription, chunk.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// 降级：过滤层故障不阻断流程，Hop1 结果原样透传
			e.logger.Warn("相关性过滤降级，保留全部粗召回结果",
				"error", err, "chunks", len(chunks))
			return &FilterResult{Chunks: chunks, Unfiltered: true}, nil
		}
		if relevant {
			kept = append(kept, chunk)
		}
	}

	out := dedupe(kept, e.dupThreshold)
	metrics.RetrievalChunks.WithLabelValues("filtered").Observe(float64(len(out)))
	return &FilterResult{Chunks: out}, nil
}

func (e *Engine) judgeRelevance(ctx context.Context, jobDescription, chunkText string) (bool, error) {
	prompt := fmt.Sprintf(`判断下面这段简历内容与职位要求是否相关。只回答 YES 或 NO。

职位要求:
%s

简历内容:
%s

回答 (YES/NO):`, jobDescription, chunkText)

	answer, err := e.client.GenerateWithContext(ctx, prompt, llm.GenerateOptions{
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), "YES"), nil
}

// GapAnalysis Hop3：综合过滤后的语料与 JD 产出结构化差距报告，
// 并用原文回查剔除误报的缺失技能。
func (e *Engine) GapAnalysis(ctx context.Context, jobDescription string, chunks []screening.Chunk) (*GapReport, error) {
	var sb strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, chunk.Text)
	}

	prompt := fmt.Sprintf(`你是招聘筛选助手。对比职位要求与候选人简历片段，输出 JSON（不要额外文字）:
{"candidate_summary": "一句话概括候选人", "matching_skills": ["技能"], "missing_skills": ["技能"], "preliminary_score": 0.0}
preliminary_score 为 0~1 的匹配度。

职位要求:
%s

简历片段:
%s`, jobDescription, sb.String())

	answer, err := e.client.GenerateWithContext(ctx, prompt, llm.GenerateOptions{
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("差距分析失败: %w", err)
	}

	raw, err := utils.ExtractJSONObject(answer)
	if err != nil {
		return nil, fmt.Errorf("差距分析输出不是 JSON: %w", err)
	}
	var report GapReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("解析差距报告失败: %w", err)
	}
	if report.PreliminaryScore < 0 {
		report.PreliminaryScore = 0
	}
	if report.PreliminaryScore > 1 {
		report.PreliminaryScore = 1
	}

	report.MissingSkills = VerifyMissingSkills(report.MissingSkills, chunks)
	return &report, nil
}

// VerifyMissingSkills 用 chunk 原文回查模型报告的缺失技能，
// 凡在原文中出现的视为误报并剔除。
func VerifyMissingSkills(missing []string, chunks []screening.Chunk) []string {
	if len(missing) == 0 {
		return missing
	}
	var corpus strings.Builder
	for _, chunk := range chunks {
		corpus.WriteString(strings.ToLower(chunk.Text))
		corpus.WriteString("\n")
	}
	text := corpus.String()

	var verified []string
	for _, skill := range missing {
		needle := strings.ToLower(strings.TrimSpace(skill))
		if needle == "" {
			continue
		}
		if !strings.Contains(text, needle) {
			verified = append(verified, skill)
		}
	}
	return verified
}
