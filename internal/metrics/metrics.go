package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and completion calls.
// In-memory only; values reset on restart.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	completions    = make(map[completionKey]int64)
	parseFallbacks = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type completionKey struct {
	Op      string
	Model   string
	Success string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordCompletion counts one outbound completion call.
func RecordCompletion(op, model string, success bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	completions[completionKey{Op: op, Model: model, Success: s}]++
}

// RecordParseFallback counts a response that was replaced by its default
// because the model output could not be parsed.
func RecordParseFallback(op string) {
	mu.Lock()
	defer mu.Unlock()
	parseFallbacks[op]++
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP pricelens_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE pricelens_http_requests_total counter\n")

	// Sort keys for stable output
	reqKeys := make([]reqKey, 0, len(requestsTotal))
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		fmt.Fprintf(&b, "pricelens_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP pricelens_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE pricelens_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP pricelens_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE pricelens_http_request_duration_ms_count counter\n")

	latKeys := make([]latKey, 0, len(latencyMsSum))
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "pricelens_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "pricelens_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP pricelens_llm_completions_total Total completion API calls\n")
	b.WriteString("# TYPE pricelens_llm_completions_total counter\n")

	compKeys := make([]completionKey, 0, len(completions))
	for k := range completions {
		compKeys = append(compKeys, k)
	}
	sort.Slice(compKeys, func(i, j int) bool {
		if compKeys[i].Op != compKeys[j].Op {
			return compKeys[i].Op < compKeys[j].Op
		}
		if compKeys[i].Model != compKeys[j].Model {
			return compKeys[i].Model < compKeys[j].Model
		}
		return compKeys[i].Success < compKeys[j].Success
	})

	for _, k := range compKeys {
		fmt.Fprintf(&b, "pricelens_llm_completions_total{op=\"%s\",model=\"%s\",success=\"%s\"} %d\n",
			k.Op, k.Model, k.Success, completions[k])
	}

	b.WriteString("# HELP pricelens_parse_fallbacks_total Responses replaced by defaults after unparseable model output\n")
	b.WriteString("# TYPE pricelens_parse_fallbacks_total counter\n")

	ops := make([]string, 0, len(parseFallbacks))
	for op := range parseFallbacks {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Fprintf(&b, "pricelens_parse_fallbacks_total{op=\"%s\"} %d\n", op, parseFallbacks[op])
	}

	return b.String()
}
