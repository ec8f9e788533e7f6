package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmpltr_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmpltr_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 生成任务指标
var (
	// GenerationJobsTotal 生成任务总数（按结果分类）
	// outcome: completed, validation_failed, connection_failed, generation_failed, persistence_failed
	GenerationJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmpltr_generation_jobs_total",
			Help: "生成任务总数",
		},
		[]string{"outcome"},
	)

	// GenerationJobDuration 生成任务耗时（秒），从建立连接到终态
	GenerationJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmpltr_generation_job_duration_seconds",
			Help:    "生成任务耗时分布",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// GeneratorDialFailures 生成服务连接失败次数
	GeneratorDialFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmpltr_generator_dial_failures_total",
			Help: "生成服务 WebSocket 连接失败次数",
		},
	)

	// PagesDuplicatedTotal 合并克隆出的新页面数
	PagesDuplicatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tmpltr_pages_duplicated_total",
			Help: "由模板生成的新页面总数",
		},
	)
)
