package platform

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NewLLMClient 创建兼容 OpenAI 协议的客户端，LLM_BASE_URL 为空时使用 SDK 默认地址
func NewLLMClient(cfg LLMConfig) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}
