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

package llm

import (
	"context"
	"testing"
	"time"

	"screening-platform/pkg/config"
	"screening-platform/pkg/errors"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		sentinel error
	}{
		{"429 限流", 429, errors.ErrRateLimited},
		{"503 瞬时", 503, errors.ErrTransientInfra},
		{"408 超时", 408, errors.ErrTransientInfra},
		{"401 不可恢复", 401, errors.ErrProviderError},
		{"400 不可恢复", 400, errors.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("openai", tt.code, "boom")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("status %d: expected %v, got %v", tt.code, tt.sentinel, err)
			}
		})
	}
}

func TestClassify_RetryableSplit(t *testing.T) {
	if !errors.IsRetryable(classifyStatus("openai", 429, "")) {
		t.Fatal("429 should be retryable")
	}
	if !errors.IsRetryable(classifyStatus("openai", 500, "")) {
		t.Fatal("500 should be retryable")
	}
	if errors.IsRetryable(classifyStatus("openai", 401, "")) {
		t.Fatal("401 must not be retryable")
	}
	if !errors.IsTerminal(classifyStatus("openai", 401, "")) {
		t.Fatal("401 should be terminal")
	}
}

func TestScriptedClient_Order(t *testing.T) {
	client := NewScriptedClient(
		ScriptedResponse{Content: "first"},
		ScriptedResponse{Err: errors.Wrap(errors.ErrRateLimited, "cooldown")},
		ScriptedResponse{Content: "third"},
	)

	got, err := client.Generate("p1", GenerateOptions{})
	if err != nil || got != "first" {
		t.Fatalf("call 1: got %q, %v", got, err)
	}
	if _, err := client.Generate("p2", GenerateOptions{}); !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("call 2: expected rate limited, got %v", err)
	}
	got, err = client.Generate("p3", GenerateOptions{})
	if err != nil || got != "third" {
		t.Fatalf("call 3: got %q, %v", got, err)
	}
	// 脚本耗尽
	if _, err := client.Generate("p4", GenerateOptions{}); !errors.Is(err, errors.ErrProviderError) {
		t.Fatalf("call 4: expected provider error, got %v", err)
	}
	if calls := client.Calls(); len(calls) != 4 || calls[0] != "p1" {
		t.Fatalf("unexpected call log: %v", calls)
	}
}

func TestRateLimitedClient_Passthrough(t *testing.T) {
	inner := NewScriptedClient(ScriptedResponse{Content: "ok"})
	client := NewRateLimitedClient(inner, nil)

	got, err := client.GenerateWithContext(context.Background(), "prompt", GenerateOptions{MaxTokens: 10})
	if err != nil {
		t.Fatalf("GenerateWithContext failed: %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected ok, got %q", got)
	}
}

func TestRateLimitedClient_ConcurrencyLimit(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]config.LLMRateLimitConfig{
		"scripted": {MaxConcurrent: 1},
	}, nil)

	if err := limiter.Wait(context.Background(), "scripted", 0); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	// 并发 slot 已满，第二个 Wait 应阻塞直到超时
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "scripted", 0); err == nil {
		t.Fatal("expected second Wait to block until ctx deadline")
	}

	limiter.Release("scripted")
	if err := limiter.Wait(context.Background(), "scripted", 0); err != nil {
		t.Fatalf("Wait after Release failed: %v", err)
	}
}

func TestLLMRateLimiter_DefaultsForUnknownProvider(t *testing.T) {
	limiter := NewLLMRateLimiter(nil, &config.LLMRateLimitConfig{
		RequestsPerMinute: 600,
		MaxConcurrent:     2,
	})
	if err := limiter.Wait(context.Background(), "brand-new", 0); err != nil {
		t.Fatalf("Wait with default config failed: %v", err)
	}
	stats := limiter.GetStats("brand-new")
	if stats == nil {
		t.Fatal("expected stats for lazily created limiter")
	}
	if stats["max_concurrent"] != 2 {
		t.Fatalf("expected defaults applied, got %v", stats)
	}
}
