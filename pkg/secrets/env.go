// Copyright 2026 fanjia1024
// Environment variable based secret store

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type envStore struct{}

// NewEnvStore 创建环境变量 secret store
func NewEnvStore() Store {
	return &envStore{}
}

// envKey 规范化 secret 名：secret://openai/api-key 这类路径式名字
// 映射到 OPENAI_API_KEY 形式的环境变量
func envKey(key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', '.', ':':
			return '_'
		}
		return r
	}, key)
	return strings.ToUpper(mapped)
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", fmt.Errorf("environment variable not set: %s", envKey(key))
	}
	return value, nil
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(envKey(key), value)
}

func (e *envStore) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(envKey(key))
}

func (e *envStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) > 0 && strings.HasPrefix(parts[0], prefix) {
			keys = append(keys, parts[0])
		}
	}
	return keys, nil
}
