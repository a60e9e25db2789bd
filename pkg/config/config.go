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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Queue       QueueConfig       `mapstructure:"queue"`
	ResultStore ResultStoreConfig `mapstructure:"result_store"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Screening   ScreeningConfig   `mapstructure:"screening"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Model       ModelConfig       `mapstructure:"model"`
	Vector      VectorConfig      `mapstructure:"vector"`
	RateLimits  RateLimitsConfig  `mapstructure:"rate_limits"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

// QueueConfig 任务队列配置（redis 为参考生产后端；memory 单进程、postgres 备选）
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // memory | redis | postgres
	Addr     string `mapstructure:"addr"`     // Redis 地址，如 "localhost:6379"
	DB       int    `mapstructure:"db"`       // Redis DB 编号
	Password string `mapstructure:"password"` // Redis 密码，可选
	Key      string `mapstructure:"key"`      // 队列 list key，空则默认 screening:jobs
	DSN      string `mapstructure:"dsn"`      // Postgres 连接串，type=postgres 时必填
}

// ResultStoreConfig 结果存储配置（Job 状态 + Verdict）
type ResultStoreConfig struct {
	Type     string `mapstructure:"type"` // memory | redis | postgres
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	DSN      string `mapstructure:"dsn"`
}

// RetrievalConfig 多跳检索配置
type RetrievalConfig struct {
	TopK               int     `mapstructure:"top_k"`               // Hop1 返回数量，<=0 默认 5
	ScoreThreshold     float64 `mapstructure:"score_threshold"`     // Hop1 相似度阈值
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"` // Hop2 近重复判定阈值，<=0 默认 0.9
	IndexName          string  `mapstructure:"index_name"`          // 向量索引名，空则 resumes
}

// ScreeningConfig 筛选流程配置（PEC 图与评分策略）
type ScreeningConfig struct {
	MaxIterations int     `mapstructure:"max_iterations"` // Critic/Refine 循环上限，<=0 默认 3
	PassScore     float64 `mapstructure:"pass_score"`     // 通过阈值（0~1），用于告警与报告
}

// WorkerConfig Worker 服务配置
type WorkerConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`      // Worker 实例数，<=0 默认 2
	DequeueTimeout  string `mapstructure:"dequeue_timeout"`  // 阻塞出队超时，如 "5s"
	MaxAttempts     int    `mapstructure:"max_attempts"`     // 单 Job 最大执行次数（含首次），<=0 默认 3
	RetryBackoff    string `mapstructure:"retry_backoff"`    // 首次重试等待，如 "1s"，指数增长
	StaleAfter      string `mapstructure:"stale_after"`      // Running 超过此时长视为孤儿并重新入队，如 "10m"
	MaintenanceSpec string `mapstructure:"maintenance_spec"` // cron 表达式，空则 "@every 1m"
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// DefaultsConfig 默认模型配置
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// VectorConfig 向量存储配置（外部只读协作方；memory 为内置内存实现）
type VectorConfig struct {
	Type      string `mapstructure:"type"` // memory
	Dimension int    `mapstructure:"dimension"`
}

// RateLimitsConfig LLM 限流配置（全局共享预算）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SecretsConfig Secret 存储配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	// 替换环境变量
	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// replaceEnvVars 替换配置中 ${VAR} 形式的模型 API Key
func replaceEnvVars(config *Config) error {
	for provider, providerConfig := range config.Model.LLM.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.LLM.Providers[provider] = providerConfig
			}
		}
	}

	for provider, providerConfig := range config.Model.Embedding.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.Embedding.Providers[provider] = providerConfig
			}
		}
	}

	return nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置（configs/worker.yaml）
func LoadWorkerConfig() (*Config, error) {
	return LoadConfig("configs/worker.yaml")
}
