// Package metrics exposes transaction counters in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/safing/deltatx/info"
	"github.com/safing/deltatx/log"
)

var (
	set = vm.NewSet()

	// TransactionsStarted counts started transactions, clones included.
	TransactionsStarted = set.NewCounter("deltatx_transactions_started_total")
	// Commits counts successful commits.
	Commits = set.NewCounter("deltatx_commits_total")
	// Rollbacks counts successful rollbacks.
	Rollbacks = set.NewCounter("deltatx_rollbacks_total")
	// Timeouts counts fired deadlines.
	Timeouts = set.NewCounter("deltatx_timeouts_total")
	// Revokes counts revoked transactions.
	Revokes = set.NewCounter("deltatx_revokes_total")
	// ListenerFailures counts listeners that returned an error or panicked.
	ListenerFailures = set.NewCounter("deltatx_listener_failures_total")
)

func init() {
	registerInfoMetric()
	registerLogMetrics()
}

func registerInfoMetric() {
	name := fmt.Sprintf(`deltatx_build_info{version=%q,go_version=%q}`, info.Version(), info.GetInfo().GoVersion)
	set.NewGauge(name, func() float64 {
		return 1
	})
}

func registerLogMetrics() {
	set.NewGauge(`deltatx_log_lines_total{level="warning"}`, func() float64 {
		return float64(log.TotalWarningLogLines())
	})
	set.NewGauge(`deltatx_log_lines_total{level="error"}`, func() float64 {
		return float64(log.TotalErrorLogLines())
	})
	set.NewGauge(`deltatx_log_lines_total{level="critical"}`, func() float64 {
		return float64(log.TotalCriticalLogLines())
	})
}

// WritePrometheus writes all metrics to w. Process metrics of the Go runtime
// are added if exposeProcessMetrics is set.
func WritePrometheus(w io.Writer, exposeProcessMetrics bool) {
	set.WritePrometheus(w)
	if exposeProcessMetrics {
		vm.WriteProcessMetrics(w)
	}
}
