// SPDX-License-Identifier: MPL-2.0

// Package metrics exports the outcome of a run as Prometheus metrics in
// the node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soarmarket/mp/internal/pipeline"
)

const namespace = "mp"

var statuses = []pipeline.Status{
	pipeline.StatusSucceeded,
	pipeline.StatusWarned,
	pipeline.StatusFailed,
	pipeline.StatusSkipped,
}

// Registry returns a registry holding the metrics of r. Every series
// carries the run id and operation as constant labels.
func Registry(r *pipeline.Report) (*prometheus.Registry, error) {
	labels := prometheus.Labels{"run_id": r.RunID, "operation": r.Operation.String()}

	units := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "units",
		Help:        "Number of content units per outcome.",
		ConstLabels: labels,
	}, []string{"status"})
	violations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "violations",
		Help:        "Number of violations per rule and severity.",
		ConstLabels: labels,
	}, []string{"rule", "severity"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_duration_seconds",
		Help:        "Wall time of the run.",
		ConstLabels: labels,
	})
	started := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_start_timestamp_seconds",
		Help:        "Unix time the run started.",
		ConstLabels: labels,
	})

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{units, violations, duration, started} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	counts := map[pipeline.Status]int{
		pipeline.StatusSucceeded: r.Counts.Succeeded,
		pipeline.StatusWarned:    r.Counts.Warned,
		pipeline.StatusFailed:    r.Counts.Failed,
		pipeline.StatusSkipped:   r.Counts.Skipped,
	}
	for _, s := range statuses {
		units.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
	for _, v := range r.Violations() {
		violations.WithLabelValues(v.RuleID.String(), v.Severity.String()).Inc()
	}
	duration.Set(r.Duration.Seconds())
	started.Set(float64(r.StartedAt.Unix()))
	return reg, nil
}

// WriteTextfile writes the metrics of r to path, atomically.
func WriteTextfile(path string, r *pipeline.Report) error {
	reg, err := Registry(r)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
