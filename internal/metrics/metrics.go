// 包 metrics 暴露同步过程的 Prometheus 指标（由 main 在 -metrics-addr 上提供）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "myclub_groups"

var (
	syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Sync steps executed, by step and result.",
	}, []string{"step", "result"})

	activityUpserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "activity_upserts_total",
		Help:      "Activity upserts, by whether a tracked field or link changed.",
	}, []string{"changed"})

	cachePurges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "purges_total",
		Help:      "Cache purge dispatches, by layer and outcome.",
	}, []string{"layer", "outcome"})

	mediaImports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "media",
		Name:      "imports_total",
		Help:      "Image imports, by how the attachment was resolved.",
	}, []string{"source"})

	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed sync run.",
	})
)

func init() {
	prometheus.MustRegister(syncRuns, activityUpserts, cachePurges, mediaImports, lastSyncGauge)
}

// RecordSync 记录一次同步步骤的结果。
func RecordSync(step string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	syncRuns.WithLabelValues(step, result).Inc()
}

func RecordUpsert(changed bool) {
	if changed {
		activityUpserts.WithLabelValues("true").Inc()
		return
	}
	activityUpserts.WithLabelValues("false").Inc()
}

func RecordPurge(layer, outcome string) {
	if layer == "" {
		layer = "none"
	}
	cachePurges.WithLabelValues(layer, outcome).Inc()
}

// RecordImport 的 source 取值：fingerprint / filename / download / failed。
func RecordImport(source string) {
	mediaImports.WithLabelValues(source).Inc()
}

// RecordRunFinished 更新最近一次完整同步的时间水位。
func RecordRunFinished(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSyncGauge.Set(float64(ts.Unix()))
}
