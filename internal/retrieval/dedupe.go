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

package retrieval

import (
	"strings"
	"unicode"

	"screening-platform/internal/screening"
)

// dedupe 剔除近重复 chunk：归一化 token 集合的 Jaccard 相似度超过阈值时
// 保留排名靠前（RankScore 高）的那个。输入按相似度降序，
// 顺序扫描先见者胜，输出保持原相对次序。
func dedupe(chunks []screening.Chunk, threshold float64) []screening.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	tokenSets := make([]map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		tokenSets[i] = tokenSet(chunk.Text)
	}

	var out []screening.Chunk
	var keptSets []map[string]struct{}
	for i, chunk := range chunks {
		duplicate := false
		for _, kept := range keptSets {
			if jaccard(tokenSets[i], kept) > threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, chunk)
			keptSets = append(keptSets, tokenSets[i])
		}
	}
	return out
}

// tokenSet 归一化文本为小写字母/数字 token 集合
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		set[word] = struct{}{}
	}
	return set
}

// jaccard 两个 token 集合的 Jaccard 相似度；双空集视为完全重复
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
