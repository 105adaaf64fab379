package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const latencyWindow = 100

type registry struct {
	mu sync.RWMutex

	requestsTotal  int64
	requestsFailed int64
	routeRequests  map[string]int64
	routeErrors    map[string]int64
	routeLatency   map[string][]time.Duration

	platformCalls   map[string]int64
	platformErrors  map[string]int64
	platformLatency map[string][]time.Duration

	breakerState map[string]string

	webhookOutcomes  map[string]int64
	agentCollisions  int64
	ownerIndexMisses int64

	startTime time.Time
}

func newRegistry() *registry {
	return &registry{
		routeRequests:   make(map[string]int64),
		routeErrors:     make(map[string]int64),
		routeLatency:    make(map[string][]time.Duration),
		platformCalls:   make(map[string]int64),
		platformErrors:  make(map[string]int64),
		platformLatency: make(map[string][]time.Duration),
		breakerState:    make(map[string]string),
		webhookOutcomes: make(map[string]int64),
		startTime:       time.Now(),
	}
}

var global = newRegistry()

// Reset clears every counter. Tests only.
func Reset() {
	r := newRegistry()
	global.mu.Lock()
	defer global.mu.Unlock()
	global.requestsTotal, global.requestsFailed = 0, 0
	global.routeRequests, global.routeErrors, global.routeLatency = r.routeRequests, r.routeErrors, r.routeLatency
	global.platformCalls, global.platformErrors, global.platformLatency = r.platformCalls, r.platformErrors, r.platformLatency
	global.breakerState = r.breakerState
	global.webhookOutcomes = r.webhookOutcomes
	global.agentCollisions, global.ownerIndexMisses = 0, 0
	global.startTime = r.startTime
}

func appendLatency(window []time.Duration, d time.Duration) []time.Duration {
	if len(window) >= latencyWindow {
		window = window[1:]
	}
	return append(window, d)
}

// RecordRequest counts one HTTP request against its route template.
func RecordRequest(route string, status int, latency time.Duration) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.requestsTotal++
	global.routeRequests[route]++
	if status >= 500 {
		global.requestsFailed++
		global.routeErrors[route]++
	}
	global.routeLatency[route] = appendLatency(global.routeLatency[route], latency)
}

// RecordPlatformCall counts one agent platform operation.
func RecordPlatformCall(operation string, success bool, latency time.Duration) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.platformCalls[operation]++
	if !success {
		global.platformErrors[operation]++
	}
	global.platformLatency[operation] = appendLatency(global.platformLatency[operation], latency)
}

func SetCircuitBreakerState(name, state string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.breakerState[name] = state
}

// RecordWebhookOutcome counts a terminal reconciler outcome (ignored, rejected, persisted, faulted).
func RecordWebhookOutcome(outcome string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.webhookOutcomes[outcome]++
}

// RecordAgentIDCollision counts an agent id that was already indexed under another owner.
func RecordAgentIDCollision() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.agentCollisions++
}

// RecordOwnerIndexMiss counts resolutions that fell back to the structural walk.
func RecordOwnerIndexMiss() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.ownerIndexMisses++
}

func WebhookOutcomes() map[string]int64 {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return copyCounts(global.webhookOutcomes)
}

func AgentIDCollisions() int64 {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.agentCollisions
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func avgSeconds(windows map[string][]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(windows))
	for k, latencies := range windows {
		if len(latencies) == 0 {
			continue
		}
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		out[k] = sum.Seconds() / float64(len(latencies))
	}
	return out
}

// Snapshot returns the JSON view served on /metrics.
func Snapshot() map[string]interface{} {
	global.mu.RLock()
	defer global.mu.RUnlock()

	breakers := make(map[string]string, len(global.breakerState))
	for k, v := range global.breakerState {
		breakers[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(global.startTime).Seconds(),
		"requests": map[string]interface{}{
			"total":               global.requestsTotal,
			"failed":              global.requestsFailed,
			"per_route":           copyCounts(global.routeRequests),
			"errors_per_route":    copyCounts(global.routeErrors),
			"latency_avg_seconds": avgSeconds(global.routeLatency),
		},
		"platform": map[string]interface{}{
			"calls":               copyCounts(global.platformCalls),
			"errors":              copyCounts(global.platformErrors),
			"latency_avg_seconds": avgSeconds(global.platformLatency),
		},
		"circuit_breakers": breakers,
		"webhook": map[string]interface{}{
			"outcomes":            copyCounts(global.webhookOutcomes),
			"agent_id_collisions": global.agentCollisions,
			"owner_index_misses":  global.ownerIndexMisses,
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeCounter(b *strings.Builder, name, help, label string, values map[string]int64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
	for _, k := range sortedKeys(values) {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

// Prometheus renders the counters in the text exposition format.
func Prometheus() string {
	global.mu.RLock()
	defer global.mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP console_uptime_seconds Process uptime in seconds\n# TYPE console_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "console_uptime_seconds %.2f\n", time.Since(global.startTime).Seconds())

	b.WriteString("# HELP console_requests_total Total HTTP requests\n# TYPE console_requests_total counter\n")
	fmt.Fprintf(&b, "console_requests_total %d\n", global.requestsTotal)
	fmt.Fprintf(&b, "console_requests_failed_total %d\n", global.requestsFailed)

	writeCounter(&b, "console_route_requests_total", "Requests per route", "route", global.routeRequests)
	writeCounter(&b, "console_platform_calls_total", "Agent platform calls per operation", "operation", global.platformCalls)
	writeCounter(&b, "console_platform_errors_total", "Failed agent platform calls per operation", "operation", global.platformErrors)
	writeCounter(&b, "console_webhook_outcomes_total", "Webhook reconciliation outcomes", "outcome", global.webhookOutcomes)

	b.WriteString("# HELP console_circuit_breaker_open Circuit breaker open (1) or not (0)\n# TYPE console_circuit_breaker_open gauge\n")
	for _, k := range sortedKeys(global.breakerState) {
		open := 0
		if global.breakerState[k] == "open" {
			open = 1
		}
		fmt.Fprintf(&b, "console_circuit_breaker_open{name=%q} %d\n", k, open)
	}

	b.WriteString("# HELP console_agent_id_collisions_total Agent ids indexed under more than one owner\n# TYPE console_agent_id_collisions_total counter\n")
	fmt.Fprintf(&b, "console_agent_id_collisions_total %d\n", global.agentCollisions)
	fmt.Fprintf(&b, "console_owner_index_misses_total %d\n", global.ownerIndexMisses)

	return b.String()
}
