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
	"sort"
	"strings"

	"screening-platform/internal/tool"
)

// SkillFrameworkTool 静态技能分类查询：给定技能返回相关技能列表。
// 用于判断候选人技能与要求是否同族（如 React 之于 Frontend）。
type SkillFrameworkTool struct{}

// NewSkillFrameworkTool 创建技能分类工具
func NewSkillFrameworkTool() *SkillFrameworkTool {
	return &SkillFrameworkTool{}
}

func (t *SkillFrameworkTool) Name() string { return "search_skill_framework" }

func (t *SkillFrameworkTool) Description() string {
	return "查询与指定技能相关的技能集合，用于判断候选人技能与职位要求是否同族"
}

func (t *SkillFrameworkTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"skill": {Type: "string", Description: "技能名称，如 python / react / ngs"},
		},
		Required: []string{"skill"},
	}
}

var skillTaxonomy = map[string][]string{
	"python":           {"Django", "Flask", "Pandas", "NumPy", "Scripting"},
	"machine learning": {"TensorFlow", "PyTorch", "Scikit-learn", "Deep Learning"},
	"react":            {"JavaScript", "Frontend", "Redux", "Hooks", "Web Development"},
	"ngs":              {"Bioinformatics", "Genomics", "DNA Sequencing", "Illumina"},
	"golang":           {"Goroutines", "gRPC", "Kubernetes", "Microservices"},
}

// Execute 实现 Tool；按子串宽松匹配分类键，键序固定保证同输入同输出
func (t *SkillFrameworkTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	skill, _ := input["skill"].(string)
	lowered := strings.ToLower(skill)

	keys := make([]string, 0, len(skillTaxonomy))
	for key := range skillTaxonomy {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	related := []string{"General Technical Skill"}
	for _, key := range keys {
		if strings.Contains(lowered, key) {
			related = skillTaxonomy[key]
			break
		}
	}

	payload, err := json.Marshal(related)
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, err
	}
	return tool.ToolResult{Content: string(payload)}, nil
}
