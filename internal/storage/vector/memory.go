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

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore 内存向量存储实现。向量按插入顺序保存在 slice 中，
// Search 的同分结果因此有确定次序（多次检索同一语料产出相同排序）。
type MemoryStore struct {
	indexes map[string]*index
	mu      sync.RWMutex
}

type index struct {
	meta      *Index
	order     []*Vector          // 插入顺序
	byID      map[string]*Vector // ID 去重/查找
	dimension int
}

// NewMemoryStore 创建新的内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		indexes: make(map[string]*index),
	}
}

// Create 创建向量索引
func (s *MemoryStore) Create(ctx context.Context, idx *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[idx.Name]; exists {
		return fmt.Errorf("index with name %s already exists", idx.Name)
	}

	s.indexes[idx.Name] = &index{
		meta:      idx,
		byID:      make(map[string]*Vector),
		dimension: idx.Dimension,
	}

	return nil
}

// Add 添加向量；重复 ID 覆盖原值但保留首次插入位置
func (s *MemoryStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return fmt.Errorf("index with name %s not found", indexName)
	}

	for _, vec := range vectors {
		if len(vec.Values) != idx.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec.Values), idx.dimension)
		}
		if old, ok := idx.byID[vec.ID]; ok {
			*old = *vec
			continue
		}
		cp := *vec
		idx.order = append(idx.order, &cp)
		idx.byID[vec.ID] = &cp
	}

	return nil
}

// Search 搜索向量
func (s *MemoryStore) Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("index with name %s not found", indexName)
	}

	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dimension)
	}

	if options == nil {
		options = &SearchOptions{TopK: 10}
	}

	var results []*SearchResult

	// 按插入顺序扫描，保证同分结果的稳定次序
	for _, vec := range idx.order {
		if len(options.Filter) > 0 {
			match := true
			for key, value := range options.Filter {
				if vec.Metadata == nil || vec.Metadata[key] != value {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}

		score := cosineSimilarity(query, vec.Values)
		if score < options.Threshold {
			continue
		}

		results = append(results, &SearchResult{
			ID:       vec.ID,
			Score:    score,
			Text:     vec.Text,
			Metadata: vec.Metadata,
		})
	}

	// 稳定排序：降序，同分保持扫描（插入）顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if options.TopK > 0 && len(results) > options.TopK {
		results = results[:options.TopK]
	}

	return results, nil
}

// Get 根据 ID 获取向量
func (s *MemoryStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("index with name %s not found", indexName)
	}

	vec, exists := idx.byID[id]
	if !exists {
		return nil, fmt.Errorf("vector with ID %s not found", id)
	}

	return vec, nil
}

// DeleteIndex 删除索引
func (s *MemoryStore) DeleteIndex(ctx context.Context, indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[indexName]; !exists {
		return fmt.Errorf("index with name %s not found", indexName)
	}

	delete(s.indexes, indexName)
	return nil
}

// ListIndexes 列出所有索引
func (s *MemoryStore) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}

// cosineSimilarity 计算余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	dotProduct := 0.0
	normA := 0.0
	normB := 0.0

	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
