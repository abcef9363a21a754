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
	API        APIConfig        `mapstructure:"api"`
	Support    SupportConfig    `mapstructure:"support"`
	Model      ModelConfig      `mapstructure:"model"`
	LLM        LLMCallConfig    `mapstructure:"llm"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port         int        `mapstructure:"port"`
	Host         string     `mapstructure:"host"`
	Timeout      string     `mapstructure:"timeout"`
	CORS         CORSConfig `mapstructure:"cors"`
	RateLimitRPS int        `mapstructure:"rate_limit_rps"` // <=0 关闭全局限流
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// SupportConfig 检索打分与对话编排的可调参数；零值由 support.Settings 补默认
type SupportConfig struct {
	KBPath           string  `mapstructure:"kb_path"`
	DefaultThreadID  string  `mapstructure:"default_thread_id"`
	RetrievalLimit   int     `mapstructure:"retrieval_limit"`
	DisplayThreshold float64 `mapstructure:"display_threshold"` // 原始分阈值
	DisplayLimit     int     `mapstructure:"display_limit"`
	NormalizeDivisor float64 `mapstructure:"normalize_divisor"`
	TicketGate       float64 `mapstructure:"ticket_gate"` // 归一化分低于该值时允许建单
	MaxIterations    int     `mapstructure:"max_iterations"`
	SnippetLength    int     `mapstructure:"snippet_length"`
	DefaultPriority  string  `mapstructure:"default_priority"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	Backend  string         `mapstructure:"backend"` // http | eino
	LLM      LLMConfig      `mapstructure:"llm"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式 provider.model_key
type DefaultsConfig struct {
	LLM string `mapstructure:"llm"`
}

// LLMCallConfig 单次 LLM 调用的超时与重试
type LLMCallConfig struct {
	Timeout   string `mapstructure:"timeout"`    // 每次尝试的超时，如 "30s"
	RetryMax  int    `mapstructure:"retry_max"`  // 仅对瞬时错误重试的次数
	RetryWait string `mapstructure:"retry_wait"` // 首次重试前等待
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	RunLog RunLogConfig `mapstructure:"runlog"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// RunLogConfig 运行日志存储配置
type RunLogConfig struct {
	Type     string `mapstructure:"type"` // sqlite | postgres | memory
	DSN      string `mapstructure:"dsn"`  // sqlite 为文件路径，postgres 为连接串
	PoolSize int    `mapstructure:"pool_size"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis | none
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"`
}

// SecretsConfig API Key 等敏感配置的来源
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
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

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// SecretRefPrefix api_key 以该前缀开头时表示需经 secrets.Store 解析
const SecretRefPrefix = "secret:"

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 将 ${VAR} 形式的 api_key 与 DSN 替换为环境变量值
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		if val, ok := expandEnvRef(providerConfig.APIKey); ok {
			providerConfig.APIKey = val
			config.Model.LLM.Providers[provider] = providerConfig
		}
	}
	if val, ok := expandEnvRef(config.Storage.RunLog.DSN); ok {
		config.Storage.RunLog.DSN = val
	}
	if val, ok := expandEnvRef(config.Storage.Cache.Password); ok {
		config.Storage.Cache.Password = val
	}
	if val, ok := expandEnvRef(config.Secrets.Vault.Token); ok {
		config.Secrets.Vault.Token = val
	}
}

func expandEnvRef(s string) (string, bool) {
	if !strings.HasPrefix(s, "$") {
		return "", false
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	val := os.Getenv(envVar)
	if val == "" {
		return "", false
	}
	return val, true
}

// LoadAPIConfig 加载 API 配置；KBSUPPORT_CONFIG 可覆盖默认路径 configs/api.yaml
func LoadAPIConfig() (*Config, error) {
	path := os.Getenv("KBSUPPORT_CONFIG")
	if path == "" {
		path = "configs/api.yaml"
	}
	return LoadConfig(path)
}
