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

package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"screening-platform/internal/tool/registry"
)

func TestSalaryRangeTool_Deterministic(t *testing.T) {
	tl := NewSalaryRangeTool()
	ctx := context.Background()
	input := map[string]any{"role": "Senior Data Engineer", "location": "New York"}

	first, err := tl.Execute(ctx, input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := tl.Execute(ctx, input)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if again.Content != first.Content {
			t.Fatalf("tool not deterministic: %q vs %q", again.Content, first.Content)
		}
	}

	var result map[string]string
	if err := json.Unmarshal([]byte(first.Content), &result); err != nil {
		t.Fatalf("invalid JSON result: %v", err)
	}
	if result["role"] != "Data Scientist" || result["location"] != "NY" {
		t.Fatalf("unexpected fuzzy match: %v", result)
	}
	if result["market_range"] != "120k-160k" {
		t.Fatalf("unexpected range: %v", result)
	}
}

func TestSalaryRangeTool_UnknownFallback(t *testing.T) {
	tl := NewSalaryRangeTool()
	result, err := tl.Execute(context.Background(), map[string]any{"role": "Bioinformatics Lead", "location": "Tokyo"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// Bioinformatics + 未知地区 → Remote 区间
	if parsed["market_range"] != "95k-135k" {
		t.Fatalf("unexpected fallback: %v", parsed)
	}
}

func TestSkillFrameworkTool(t *testing.T) {
	tl := NewSkillFrameworkTool()
	ctx := context.Background()

	result, err := tl.Execute(ctx, map[string]any{"skill": "React.js"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var related []string
	if err := json.Unmarshal([]byte(result.Content), &related); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(related) == 0 || related[0] != "JavaScript" {
		t.Fatalf("unexpected taxonomy result: %v", related)
	}

	result, err = tl.Execute(ctx, map[string]any{"skill": "underwater basket weaving"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := json.Unmarshal([]byte(result.Content), &related); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(related) != 1 || related[0] != "General Technical Skill" {
		t.Fatalf("expected fallback, got %v", related)
	}
}

func TestRegisterAll(t *testing.T) {
	r := registry.New()
	RegisterAll(r)

	if _, ok := r.Get("lookup_salary_range"); !ok {
		t.Fatal("lookup_salary_range not registered")
	}
	if _, ok := r.Get("search_skill_framework"); !ok {
		t.Fatal("search_skill_framework not registered")
	}

	schemas, err := r.SchemasForLLM()
	if err != nil {
		t.Fatalf("SchemasForLLM failed: %v", err)
	}
	var list []registry.ToolSchemaForLLM
	if err := json.Unmarshal(schemas, &list); err != nil {
		t.Fatalf("invalid schema JSON: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(list))
	}
}
