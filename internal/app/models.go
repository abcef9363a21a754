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

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kb-support/internal/model"
	"kb-support/internal/model/llm"
	"kb-support/pkg/config"
	"kb-support/pkg/secrets"
)

// 模型后端
const (
	BackendHTTP = "http"
	BackendEino = "eino"
)

// ModelSettings 选中模型的标识与采样参数
type ModelSettings struct {
	Key         string
	Provider    string
	Name        string
	Temperature float64
	MaxTokens   int
}

// NewLLMClientFromConfig 根据 model.defaults.llm（如 "openai.gpt_4o_mini"）创建 LLM 客户端，
// 外层依次包上 provider 限流与超时重试
func NewLLMClientFromConfig(ctx context.Context, cfg *config.Config, store secrets.Store) (llm.Client, ModelSettings, error) {
	var ms ModelSettings
	if cfg == nil || cfg.Model.Defaults.LLM == "" {
		return nil, ms, fmt.Errorf("model.defaults.llm 未配置")
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, ms, err
	}
	pc, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, ms, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, ms, fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	apiKey, err := secrets.Resolve(ctx, store, pc.APIKey)
	if err != nil {
		return nil, ms, err
	}
	if apiKey == "" {
		return nil, ms, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}
	ms = ModelSettings{
		Key:         cfg.Model.Defaults.LLM,
		Provider:    provider,
		Name:        mi.Name,
		Temperature: mi.Temperature,
		MaxTokens:   mi.MaxTokens,
	}

	timeout := parseDuration(cfg.LLM.Timeout, 30*time.Second)
	var base llm.Client
	switch strings.ToLower(cfg.Model.Backend) {
	case "", BackendHTTP:
		base, err = llm.NewClient(provider, mi.Name, apiKey, pc.BaseURL)
	case BackendEino:
		if provider == "claude" {
			return nil, ms, fmt.Errorf("eino 后端仅支持 OpenAI 兼容 provider，当前: %s", provider)
		}
		base, err = llm.NewEinoOpenAIClient(ctx, provider, mi.Name, apiKey, pc.BaseURL, timeout)
	default:
		return nil, ms, fmt.Errorf("不支持的模型后端: %s", cfg.Model.Backend)
	}
	if err != nil {
		return nil, ms, err
	}

	limiter := llm.NewLLMRateLimiter(llm.LimitConfigsFromConfig(cfg.RateLimits.LLM), nil)
	client := llm.NewResilientClient(llm.NewRateLimitedClient(base, limiter), llm.ResilientConfig{
		Timeout:   timeout,
		RetryMax:  retryMax(cfg.LLM.RetryMax),
		RetryWait: parseDuration(cfg.LLM.RetryWait, 500*time.Millisecond),
	})
	model.RegisterLLM(ms.Key, client)
	return client, ms, nil
}

// retryMax 未配置时重试一次，负数关闭重试
func retryMax(n int) int {
	switch {
	case n < 0:
		return 0
	case n == 0:
		return 1
	default:
		return n
	}
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o_mini，当前: %q", key)
	}
	return parts[0], parts[1], nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
