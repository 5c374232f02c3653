package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 会话查询
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_engine_query_duration_seconds",
			Help:    "Chat session query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// 工作流步骤
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_engine_step_duration_seconds",
			Help:    "Workflow step execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step_type"},
	)

	StepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_engine_step_errors_total",
			Help: "Total number of failed workflow steps",
		},
		[]string{"step_type", "reason"},
	)

	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_engine_routing_decisions_total",
			Help: "Total number of router decisions by selected route",
		},
		[]string{"route"},
	)

	// 外部依赖
	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_retrieval_duration_seconds",
			Help:    "Remote document search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	RetrievedDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_retrieval_documents",
			Help:    "Number of documents returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	ModelInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_model_invocation_duration_seconds",
			Help:    "Language model invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "mode", "status"},
	)

	// 连接
	ActiveChatSockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_chat_sockets_active",
			Help: "Number of open chat websocket connections",
		},
	)
)

// Status 将错误转换为 status 标签
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Since 返回自 start 起经过的秒数
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
