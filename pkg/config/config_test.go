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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
queue:
  type: "redis"
  addr: "localhost:6379"
screening:
  max_iterations: 3
  pass_score: 0.7
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.Queue.Type != "redis" {
		t.Errorf("Queue.Type: got %q", cfg.Queue.Type)
	}
	if cfg.Screening.MaxIterations != 3 {
		t.Errorf("Screening.MaxIterations: got %d", cfg.Screening.MaxIterations)
	}
	if cfg.Screening.PassScore != 0.7 {
		t.Errorf("Screening.PassScore: got %f", cfg.Screening.PassScore)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	dir := t.TempDir()
	yaml := `
model:
  llm:
    providers:
      openai:
        api_key: "${TEST_SCREENING_OPENAI_KEY}"
        model: "gpt-4o-mini"
`
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("TEST_SCREENING_OPENAI_KEY", "sk-test")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Model.LLM.Providers["openai"].APIKey; got != "sk-test" {
		t.Errorf("APIKey: got %q, want env value", got)
	}
}
