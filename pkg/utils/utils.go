// Package utils 通用小工具，不依赖 internal
package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CoalesceString 返回第一个非空字符串
func CoalesceString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// DefaultInt 若 v 为 0 则返回 defaultVal
func DefaultInt(v, defaultVal int) int {
	if v == 0 {
		return defaultVal
	}
	return v
}

// TruncateForLog 截断长文本用于日志输出（prompt 预览等），按 rune 截断避免半个字符
func TruncateForLog(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// ExtractJSONObject 从模型输出中提取第一个完整 JSON object。
// 模型常把 JSON 包在 markdown 代码块或说明文字里，这里取最外层的 {...}。
func ExtractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("输出中没有 JSON object: %s", TruncateForLog(s, 128))
	}
	return s[start : end+1], nil
}
