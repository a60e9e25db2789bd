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
	"strings"

	"screening-platform/internal/tool"
)

// SalaryRangeTool 按角色和地区查询市场薪资区间。
// 纯内置数据，同输入永远同输出，评估节点可以放心重放。
type SalaryRangeTool struct{}

// NewSalaryRangeTool 创建薪资查询工具
func NewSalaryRangeTool() *SalaryRangeTool {
	return &SalaryRangeTool{}
}

func (t *SalaryRangeTool) Name() string { return "lookup_salary_range" }

func (t *SalaryRangeTool) Description() string {
	return "查询指定角色在指定地区的市场薪资区间，用于评估候选人预算匹配度"
}

func (t *SalaryRangeTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"role":     {Type: "string", Description: "职位角色，如 Software Engineer"},
			"location": {Type: "string", Description: "工作地区，如 NY / SF / Remote"},
		},
		Required: []string{"role", "location"},
	}
}

var salaryTable = map[string]map[string]string{
	"Data Scientist": {
		"NY": "120k-160k", "SF": "140k-180k", "Remote": "110k-150k",
	},
	"Software Engineer": {
		"NY": "130k-170k", "SF": "150k-200k", "Remote": "120k-160k",
	},
	"Bioinformatics Scientist": {
		"Boston": "100k-140k", "SF": "120k-160k", "Remote": "95k-135k",
	},
}

// Execute 实现 Tool；role/location 做宽松匹配，未命中时回退默认区间
func (t *SalaryRangeTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	role, _ := input["role"].(string)
	location, _ := input["location"].(string)

	roleKey := "Software Engineer"
	lowered := strings.ToLower(role)
	if strings.Contains(lowered, "data") {
		roleKey = "Data Scientist"
	}
	if strings.Contains(lowered, "bio") {
		roleKey = "Bioinformatics Scientist"
	}

	locKey := "Remote"
	loweredLoc := strings.ToLower(location)
	switch {
	case strings.Contains(loweredLoc, "ny") || strings.Contains(loweredLoc, "new york"):
		locKey = "NY"
	case strings.Contains(loweredLoc, "sf") || strings.Contains(loweredLoc, "francisco"):
		locKey = "SF"
	case strings.Contains(loweredLoc, "boston"):
		locKey = "Boston"
	}

	marketRange := "80k-120k"
	if byLoc, ok := salaryTable[roleKey]; ok {
		if r, ok := byLoc[locKey]; ok {
			marketRange = r
		}
	}

	payload, err := json.Marshal(map[string]string{
		"role":         roleKey,
		"location":     locKey,
		"market_range": marketRange,
	})
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, err
	}
	return tool.ToolResult{Content: string(payload)}, nil
}
