package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsRPCRequests = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_rpc_requests",
		Help:         "stats_rpc_requests provides total JSON-RPC requests by method",
		RequiredTags: []string{"method"},
	}

	StatsRPCErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_rpc_errors",
		Help:         "stats_rpc_errors provides total JSON-RPC error responses by code",
		RequiredTags: []string{"code"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed with an execution fault",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total calls to unknown tools",
		RequiredTags: []string{"tool"},
	}

	StatsToolDomainFailures = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_domain_failures",
		Help:         "stats_tool_domain_failures provides total tool calls that returned success false",
		RequiredTags: []string{"tool"},
	}
)

// Perf
var (
	PerfRPCRequest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_rpc_request",
		Help:         "perf_rpc_request provides duration of JSON-RPC request dispatch",
		RequiredTags: []string{"method"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfRPCRequest,
	&PerfToolCall,
	&StatsRPCErrors,
	&StatsRPCRequests,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
	&StatsToolDomainFailures,
}
