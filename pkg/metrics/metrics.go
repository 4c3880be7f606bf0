package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_generations_total",
			Help: "Total number of generation requests by variant and outcome.",
		},
		[]string{"variant", "outcome"},
	)
	tableDescriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_table_descriptions_total",
			Help: "Total number of table metadata documents built, by outcome (ok or placeholder).",
		},
		[]string{"outcome"},
	)
	referencesRetrievedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "text2sql_references_retrieved_total",
			Help: "Total number of question/SQL references returned by the retriever.",
		},
	)
	retrievalErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "text2sql_retrieval_errors_total",
			Help: "Total number of retrievals that degraded to empty after an embedding or search error.",
		},
	)
	completionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "text2sql_completion_latency_ms",
			Help:    "Completion backend latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
	)
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_mcp_tool_calls_total",
			Help: "Total number of MCP tool calls by tool and outcome (ok, tool_error or error).",
		},
		[]string{"tool", "outcome"},
	)
	metadataPassLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "text2sql_metadata_pass_latency_ms",
			Help:    "Latency of one batch metadata pass in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		generationsTotal,
		tableDescriptionsTotal,
		referencesRetrievedTotal,
		retrievalErrorsTotal,
		completionLatencyMs,
		metadataPassLatencyMs,
		toolCallsTotal,
	)
}

// ObserveGeneration records one finished generation.
func ObserveGeneration(variant, outcome string) {
	generationsTotal.WithLabelValues(variant, outcome).Inc()
}

// ObserveTableDescription records one table document; degraded marks a placeholder.
func ObserveTableDescription(degraded bool) {
	outcome := "ok"
	if degraded {
		outcome = "placeholder"
	}
	tableDescriptionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveReferences(n int) {
	if n > 0 {
		referencesRetrievedTotal.Add(float64(n))
	}
}

func IncrementRetrievalErrors() {
	retrievalErrorsTotal.Inc()
}

func ObserveCompletionLatency(elapsed time.Duration) {
	completionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveMetadataPass(elapsed time.Duration) {
	metadataPassLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

// ObserveToolCall records one MCP tool call.
func ObserveToolCall(tool, outcome string) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}
