package relay

import (
	"time"

	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/llm/deepseek"
)

// DefaultSystemPrompt is sent ahead of every user message unless overridden.
const DefaultSystemPrompt = `你是一个友好、专业、有同理心的AI助手。请按照以下方式与用户交流：

## 交流风格：
- 用自然、亲切的语气，就像朋友间的对话
- 保持逻辑清晰，但不要过于机械
- 适当表达理解和共鸣
- 用简单易懂的语言解释复杂概念

## 回答原则：
1. **理解优先**：先理解用户真正想问什么
2. **循序渐进**：从简单到复杂，逐步深入
3. **实用导向**：提供具体、可操作的答案
4. **人性化**：承认不确定性，表达同理心

## 格式要求：
- 使用Markdown格式让内容更清晰
- 代码块注明语言名
- 列表用 - 或 1. 2. 3.
- 强调用 **粗体** 或 *斜体*

记住：你是一个有温度、有智慧的助手，目标是帮助用户解决问题，同时让交流变得愉快和有意义。`

// Policy bounds a single upstream call.
type Policy struct {
	// Timeout is the wall clock budget measured from dispatch.
	Timeout time.Duration

	MaxTokens   int
	Temperature float64
}

// DefaultOneShotPolicy is used by Complete.
func DefaultOneShotPolicy() Policy {
	return Policy{
		Timeout:     15 * time.Second,
		MaxTokens:   500,
		Temperature: 0.1,
	}
}

// DefaultProgressivePolicy is used by CompleteProgressive.
func DefaultProgressivePolicy() Policy {
	return Policy{
		Timeout:     30 * time.Second,
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// Config is the relay configuration.
type Config struct {
	// APIURL is the provider's chat completions endpoint.
	APIURL string

	// APIKey is sent as a bearer token. An empty key fails every call with
	// ErrMissingCredential.
	APIKey string

	// SystemPrompt is prepended to requests built by the relay. Empty selects
	// DefaultSystemPrompt.
	SystemPrompt string

	// Model is used for requests that do not name one. Empty selects
	// llm.DefaultModel.
	Model string

	OneShot     Policy
	Progressive Policy

	// ShortMessageThreshold is the rune count below which results are cached.
	ShortMessageThreshold int
}

func (c Config) withDefaults() Config {
	if c.APIURL == "" {
		c.APIURL = deepseek.DefaultAPIURL
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Model == "" {
		c.Model = llm.DefaultModel
	}

	c.OneShot = fillPolicy(c.OneShot, DefaultOneShotPolicy())
	c.Progressive = fillPolicy(c.Progressive, DefaultProgressivePolicy())

	return c
}

func fillPolicy(p, defaults Policy) Policy {
	if p.Timeout <= 0 {
		p.Timeout = defaults.Timeout
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaults.MaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = defaults.Temperature
	}
	return p
}
