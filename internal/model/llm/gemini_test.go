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
	"net/http"
	"net/http/httptest"
	"testing"

	"screening-platform/pkg/errors"
)

func TestGeminiClient_ParsesCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"候选人具备 Go 与 Redis 经验"}]}}]}`))
	}))
	defer server.Close()
	t.Setenv("GEMINI_BASE_URL", server.URL)

	client, err := NewGeminiClient("gemini-1.5-flash", "test-key")
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}

	got, err := client.Generate("总结候选人经验", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "候选人具备 Go 与 Redis 经验" {
		t.Fatalf("unexpected response text: %q", got)
	}
}

func TestGeminiClient_RateLimitedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()
	t.Setenv("GEMINI_BASE_URL", server.URL)

	client, err := NewGeminiClient("gemini-1.5-flash", "test-key")
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}

	if _, err := client.Generate("p", GenerateOptions{}); !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}
