package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 与 CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ChatRequestsTotal, ChatDuration,
		LLMCallsTotal, LLMDuration, LLMTokensTotal,
		ToolCallsTotal, KBTopScore,
		RunLogFailuresTotal, RateLimitWaitSeconds,
		RetrievalCacheTotal,
	)
}

// ChatRequestsTotal /chat 请求数（按结果）
var ChatRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kbsupport_chat_requests_total",
		Help: "chat 请求总数（按结果）",
	},
	[]string{"outcome"}, // answered | fallback | error
)

// ChatDuration 单次 chat 处理耗时（秒）
var ChatDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "kbsupport_chat_duration_seconds",
		Help:    "chat 处理耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// LLMCallsTotal LLM 调用次数
var LLMCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kbsupport_llm_calls_total",
		Help: "LLM 调用次数",
	},
	[]string{"provider", "status"}, // ok | error | retry
)

// LLMDuration LLM 调用耗时（秒）
var LLMDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kbsupport_llm_duration_seconds",
		Help:    "LLM 调用耗时（秒）",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	},
	[]string{"provider"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kbsupport_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// ToolCallsTotal 工具调用次数
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kbsupport_tool_calls_total",
		Help: "工具调用次数",
	},
	[]string{"tool", "status"},
)

// KBTopScore 每次检索的归一化最高分分布
var KBTopScore = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "kbsupport_kb_top_score",
		Help:    "检索归一化最高分",
		Buckets: []float64{0, 0.1, 0.2, 0.3, 0.5, 0.6, 0.8, 1},
	},
)

// RunLogFailuresTotal 运行日志写入失败次数（重试耗尽后）
var RunLogFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "kbsupport_runlog_failures_total",
		Help: "运行日志写入失败次数",
	},
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kbsupport_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// RetrievalCacheTotal 检索缓存命中情况
var RetrievalCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kbsupport_retrieval_cache_total",
		Help: "检索缓存访问次数",
	},
	[]string{"result"}, // hit | miss | error
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
