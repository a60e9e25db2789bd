package llm

import (
	"context"
	"sync"

	"screening-platform/pkg/errors"
)

// ScriptedClient 按脚本顺序返回应答的 Client 实现，测试用。
// 每次调用弹出一个 Response；脚本耗尽后返回 ErrProviderError。
type ScriptedClient struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	calls     []string // 记录每次调用的 prompt（Chat 时为最后一条消息）
	model     string
	provider  string
}

// ScriptedResponse 单次调用的脚本应答
type ScriptedResponse struct {
	Content string
	Err     error
}

// NewScriptedClient 创建脚本化客户端
func NewScriptedClient(responses ...ScriptedResponse) *ScriptedClient {
	return &ScriptedClient{
		responses: responses,
		model:     "scripted",
		provider:  "scripted",
	}
}

// Calls 返回已记录的调用 prompt 列表
func (c *ScriptedClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *ScriptedClient) next(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, prompt)
	if len(c.responses) == 0 {
		return "", errors.Wrap(errors.ErrProviderError, "scripted client 脚本耗尽")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp.Content, resp.Err
}

func (c *ScriptedClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.next(prompt)
}

func (c *ScriptedClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.next(prompt)
}

func (c *ScriptedClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

func (c *ScriptedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	return c.next(prompt)
}

func (c *ScriptedClient) Model() string           { return c.model }
func (c *ScriptedClient) Provider() string        { return c.provider }
func (c *ScriptedClient) SetModel(model string)   { c.model = model }
func (c *ScriptedClient) SetAPIKey(apiKey string) {}
