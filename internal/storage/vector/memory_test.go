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
	"testing"
)

func newTestIndex(t *testing.T, store *MemoryStore, name string, dim int) {
	t.Helper()
	if err := store.Create(context.Background(), &Index{Name: name, Dimension: dim}); err != nil {
		t.Fatalf("Create index failed: %v", err)
	}
}

func TestMemoryStore_AddAndSearch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	newTestIndex(t, store, "resume-1", 2)

	vectors := []*Vector{
		{ID: "c1", Values: []float64{1, 0}, Text: "golang backend"},
		{ID: "c2", Values: []float64{0, 1}, Text: "french pastry"},
		{ID: "c3", Values: []float64{0.9, 0.1}, Text: "golang services"},
	}
	if err := store.Add(ctx, "resume-1", vectors); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := store.Search(ctx, "resume-1", []float64{1, 0}, &SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "c1" || results[1].ID != "c3" {
		t.Fatalf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Text != "golang backend" {
		t.Fatalf("expected chunk text on result, got %q", results[0].Text)
	}
}

func TestMemoryStore_SearchTieOrderDeterministic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	newTestIndex(t, store, "resume-1", 2)

	// 三个同分向量，多次检索必须按插入顺序返回
	same := []float64{1, 0}
	if err := store.Add(ctx, "resume-1", []*Vector{
		{ID: "a", Values: same},
		{ID: "b", Values: same},
		{ID: "c", Values: same},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		results, err := store.Search(ctx, "resume-1", same, &SearchOptions{TopK: 3})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if results[0].ID != "a" || results[1].ID != "b" || results[2].ID != "c" {
			t.Fatalf("iteration %d: tie order not stable: %s %s %s",
				i, results[0].ID, results[1].ID, results[2].ID)
		}
	}
}

func TestMemoryStore_SearchThreshold(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	newTestIndex(t, store, "resume-1", 2)

	if err := store.Add(ctx, "resume-1", []*Vector{
		{ID: "near", Values: []float64{1, 0}},
		{ID: "far", Values: []float64{0, 1}},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := store.Search(ctx, "resume-1", []float64{1, 0}, &SearchOptions{TopK: 10, Threshold: 0.5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "near" {
		t.Fatalf("threshold filter failed: %+v", results)
	}
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	newTestIndex(t, store, "resume-1", 3)

	err := store.Add(ctx, "resume-1", []*Vector{{ID: "bad", Values: []float64{1, 0}}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}

	if _, err := store.Search(ctx, "resume-1", []float64{1, 0}, nil); err == nil {
		t.Fatal("expected query dimension mismatch error")
	}
}
