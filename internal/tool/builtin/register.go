package builtin

import (
	"screening-platform/internal/tool/registry"
)

// RegisterAll 注册全部内置工具
func RegisterAll(r *registry.Registry) {
	r.Register(NewSalaryRangeTool())
	r.Register(NewSkillFrameworkTool())
}
