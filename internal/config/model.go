package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// NewChatModel builds a chat model for the selected provider. modelName
// overrides the configured model when non-empty.
func (c AIConfig) NewChatModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	modelName = strings.TrimSpace(modelName)

	switch c.Provider {
	case ProviderOllama, "":
		return c.newOllamaModel(ctx, modelName)
	case ProviderArk:
		return c.newArkModel(ctx, modelName)
	default:
		return nil, fmt.Errorf("%w: %q", ErrProviderUnsupported, c.Provider)
	}
}

func (c AIConfig) newOllamaModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	if modelName == "" {
		modelName = c.Ollama.Model
	}
	if modelName == "" {
		return nil, fmt.Errorf("ollama model is not configured, set OLLAMA_MODEL")
	}

	cfg := &ollama.ChatModelConfig{
		BaseURL: c.Ollama.BaseURL,
		Model:   modelName,
		Timeout: time.Duration(c.Timeout) * time.Second,
		Options: &api.Options{
			Temperature: c.Ollama.Temperature,
			TopP:        c.Ollama.TopP,
			TopK:        c.Ollama.TopK,
			NumPredict:  c.Ollama.NumPredict,
		},
	}

	return ollama.NewChatModel(ctx, cfg)
}

func (c AIConfig) newArkModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	arkCfg := c.Ark
	if modelName != "" {
		arkCfg.Model = modelName
	}
	if !arkCfg.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing, provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if arkCfg.Temperature != nil {
		val := float32(*arkCfg.Temperature)
		temperature = &val
	}

	var topP *float32
	if arkCfg.TopP != nil {
		val := float32(*arkCfg.TopP)
		topP = &val
	}

	var timeout *time.Duration
	if c.Timeout > 0 {
		val := time.Duration(c.Timeout) * time.Second
		timeout = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     arkCfg.BaseURL,
		Region:      arkCfg.Region,
		APIKey:      arkCfg.APIKey,
		AccessKey:   arkCfg.AccessKey,
		SecretKey:   arkCfg.SecretKey,
		Model:       arkCfg.Model,
		MaxTokens:   arkCfg.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
		Timeout:     timeout,
	}

	return ark.NewChatModel(ctx, cfg)
}
