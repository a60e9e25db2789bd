// Copyright 2026 fanjia1024
// Tests for builtin tool schemas

package builtin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-platform/internal/tool/registry"
)

func TestSalaryRangeTool_Schema(t *testing.T) {
	tool := NewSalaryRangeTool()
	assert.Equal(t, "lookup_salary_range", tool.Name())
	assert.NotEmpty(t, tool.Description())

	schema := tool.Schema()
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "role")
	assert.Contains(t, schema.Properties, "location")
	assert.Contains(t, schema.Required, "role")
}

func TestSkillFrameworkTool_Schema(t *testing.T) {
	tool := NewSkillFrameworkTool()
	assert.Equal(t, "search_skill_framework", tool.Name())

	schema := tool.Schema()
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "skill")
	assert.Contains(t, schema.Required, "skill")
}

func TestSchemasForLLM(t *testing.T) {
	reg := registry.New()
	RegisterAll(reg)

	data, err := reg.SchemasForLLM()
	require.NoError(t, err)

	var schemas []map[string]any
	require.NoError(t, json.Unmarshal(data, &schemas))
	assert.Len(t, schemas, 2)
	// List 按名称排序，序列化顺序稳定
	assert.Equal(t, "lookup_salary_range", schemas[0]["name"])
	assert.Equal(t, "search_skill_framework", schemas[1]["name"])
}
