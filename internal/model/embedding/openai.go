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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"screening-platform/pkg/errors"
)

// OpenAIEmbedder OpenAI Embedding 客户端
type OpenAIEmbedder struct {
	model     string
	apiKey    string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewOpenAIEmbedder 创建 OpenAI Embedding 客户端
func NewOpenAIEmbedder(model, apiKey, baseURL string, dimension int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 1536
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &OpenAIEmbedder{
		model:     model,
		apiKey:    apiKey,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}
}

// Embed 调用 embeddings API，返回与 texts 顺序一致的向量
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]interface{}{
		"model": e.model,
		"input": texts,
	}

	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+e.apiKey).
		SetBody(request).
		Post(e.baseURL + "/embeddings")

	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransientInfra, "调用 Embedding API failed: %v", err)
	}
	if response.StatusCode() == http.StatusTooManyRequests {
		return nil, errors.Wrapf(errors.ErrRateLimited, "Embedding API 限流: %s", response.String())
	}
	if response.StatusCode() != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrProviderError, "Embedding API 返回 %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Embedding 响应failed: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("Embedding 返回数量不匹配: 期望 %d 实际 %d", len(texts), len(result.Data))
	}

	// API 不保证顺序，按 index 归位
	out := make([][]float64, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("Embedding 返回非法 index: %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// Model 返回模型名称
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }
