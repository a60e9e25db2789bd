package embedding

import (
	"context"
	"fmt"
)

// Embedder 向量化接口
type Embedder interface {
	// Embed 对文本做向量化，返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Model 返回模型名称
	Model() string
	// Dimension 返回向量维度
	Dimension() int
}

// NewEmbedder 根据 provider 创建 Embedder；local 为确定性本地实现（开发/测试用）
func NewEmbedder(provider, model, apiKey, baseURL string, dimension int) (Embedder, error) {
	switch provider {
	case "", "local":
		return NewLocalEmbedder(dimension), nil
	case "openai":
		return NewOpenAIEmbedder(model, apiKey, baseURL, dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
