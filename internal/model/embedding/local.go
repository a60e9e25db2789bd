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
	"hash/fnv"
	"math"
	"strings"
)

// LocalEmbedder 确定性本地向量化：词 hash 投影到固定维度并归一化。
// 无外部依赖，同一文本永远得到同一向量，开发与测试用；
// 相同词汇重叠的文本余弦相似度更高，足够支撑检索排序的测试。
type LocalEmbedder struct {
	dimension int
}

// NewLocalEmbedder 创建本地 Embedder
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &LocalEmbedder{dimension: dimension}
}

// Embed 实现 Embedder
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float64 {
	vec := make([]float64, e.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		// 次高位决定符号，降低纯计数带来的偏置
		if (sum>>32)&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Model 返回模型名称
func (e *LocalEmbedder) Model() string { return "local-hash" }

// Dimension 返回向量维度
func (e *LocalEmbedder) Dimension() int { return e.dimension }
