// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tankerci"

// Stages collects per-stage outcomes for one invocation. A nil *Stages
// records nothing.
type Stages struct {
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	success  *prometheus.GaugeVec
	runs     *prometheus.CounterVec
	now      func() time.Time
}

// NewStages creates a collector backed by its own registry.
func NewStages() *Stages {
	s := &Stages{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run of each pipeline stage.",
		}, []string{"stage"}),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "success",
			Help:      "1 if the last run of the stage succeeded, 0 otherwise.",
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Number of stage runs by outcome.",
		}, []string{"stage", "outcome"}),
		now: time.Now,
	}
	s.registry.MustRegister(s.duration, s.success, s.runs)
	return s
}

// Start begins timing stage. The returned function records the outcome.
func (s *Stages) Start(stage string) func(err error) {
	if s == nil {
		return func(error) {}
	}
	began := s.now()
	return func(err error) {
		s.duration.WithLabelValues(stage).Set(s.now().Sub(began).Seconds())
		outcome, ok := "success", 1.0
		if err != nil {
			outcome, ok = "failure", 0
		}
		s.success.WithLabelValues(stage).Set(ok)
		s.runs.WithLabelValues(stage, outcome).Inc()
	}
}

// WriteFile writes the collected metrics to path atomically.
func (s *Stages) WriteFile(path string) error {
	if s == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Success returns the outcome gauge of stage.
func (s *Stages) Success(stage string) prometheus.Gauge {
	return s.success.WithLabelValues(stage)
}
