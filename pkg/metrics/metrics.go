package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobDuration, JobTotal, JobFailTotal, JobAttempts,
		NodeDuration, RefineTotal,
		LLMTokensTotal, RateLimitWaitSeconds,
		QueueDepth, WorkerBusy,
		RetrievalChunks,
	)
}

// JobDuration 筛选 Job 执行耗时（秒）
var JobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "screening_job_duration_seconds",
		Help:    "筛选 Job 执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"status"},
)

// JobTotal 筛选 Job 总数（按终态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "screening_job_total",
		Help: "筛选 Job 总数（按终态）",
	},
	[]string{"status"}, // succeeded | failed | cancelled
)

// JobFailTotal Job 失败/取消总数（与 JobTotal 配合可算 job_fail_rate）
var JobFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "screening_job_fail_total",
		Help: "Job 失败/取消总数",
	},
	[]string{"reason"}, // validation | provider | rate_limited | cancelled | other
)

// JobAttempts 单 Job 实际执行次数分布
var JobAttempts = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "screening_job_attempts",
		Help:    "单 Job 实际执行次数分布",
		Buckets: []float64{1, 2, 3, 4, 5},
	},
)

// NodeDuration PEC 节点执行耗时（秒）
var NodeDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "screening_node_duration_seconds",
		Help:    "PEC 节点执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"node"}, // plan | execute | critique | finalize
)

// RefineTotal Refine 边触发次数
var RefineTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "screening_refine_total",
		Help: "Critic 打回重做（Refine 边）总次数",
	},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "screening_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待时长（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "screening_rate_limit_wait_seconds",
		Help:    "获取限流许可的等待时长（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// QueueDepth 队列当前待处理 Job 数
var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "screening_queue_depth",
		Help: "队列当前待处理 Job 数",
	},
	[]string{"queue"},
)

// WorkerBusy 当前正在执行的 Job 数（每 Worker）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "screening_worker_busy",
		Help: "当前正在执行的 Job 数",
	},
	[]string{"worker_id"},
)

// RetrievalChunks 每跳检索产出 chunk 数
var RetrievalChunks = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "screening_retrieval_chunks",
		Help:    "每跳检索产出 chunk 数",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	},
	[]string{"hop"}, // broad | filtered
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
