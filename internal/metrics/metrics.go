// Package metrics collects the counters of a diff run and writes them in
// the Prometheus text format.
package metrics

import (
	"github.com/bsm/mapdiff"
	"github.com/prometheus/client_golang/prometheus"
)

// Run holds the metrics of one diff run on a private registry.
type Run struct {
	reg *prometheus.Registry

	Features       *prometheus.GaugeVec
	Changes        *prometheus.GaugeVec
	Ranges         *prometheus.GaugeVec
	LevelFeatures  *prometheus.GaugeVec
	StageDuration  *prometheus.GaugeVec
	LastSuccessful prometheus.Gauge
}

// NewRun registers a fresh set of metrics.
func NewRun() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		Features: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapdiff_input_features",
			Help: "Number of features read per input",
		}, []string{"input"}),
		Changes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapdiff_features",
			Help: "Number of features by diff outcome",
		}, []string{"change"}),
		Ranges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapdiff_zoom_ranges",
			Help: "Number of zoom ranges by diff outcome",
		}, []string{"status"}),
		LevelFeatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapdiff_level_features",
			Help: "Number of features written per zoom range",
		}, []string{"zoom"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapdiff_stage_duration_seconds",
			Help: "Duration of each run stage in seconds",
		}, []string{"stage"}),
		LastSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mapdiff_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
	r.reg.MustRegister(r.Features, r.Changes, r.Ranges, r.LevelFeatures, r.StageDuration, r.LastSuccessful)
	return r
}

// ObserveDiff records the outcome of a diff.
func (r *Run) ObserveDiff(stats mapdiff.DiffStats) {
	r.Changes.WithLabelValues("unchanged").Set(float64(stats.Unchanged))
	r.Changes.WithLabelValues("modified").Set(float64(stats.Modified))
	r.Changes.WithLabelValues("deleted").Set(float64(stats.Deleted))
	r.Changes.WithLabelValues("added").Set(float64(stats.Added))
	r.Ranges.WithLabelValues("compared").Set(float64(stats.Ranges))
	r.Ranges.WithLabelValues("skipped").Set(float64(stats.SkippedRanges))
}

// ObserveLevels records the written level blocks.
func (r *Run) ObserveLevels(levels []mapdiff.LevelStats) {
	for _, l := range levels {
		r.LevelFeatures.WithLabelValues(l.Range.String()).Set(float64(l.Features))
	}
}

// Gatherer exposes the registry.
func (r *Run) Gatherer() prometheus.Gatherer { return r.reg }

// WriteFile writes all metrics to name in the text exposition format,
// atomically replacing any previous file.
func (r *Run) WriteFile(name string) error {
	return prometheus.WriteToTextfile(name, r.reg)
}
