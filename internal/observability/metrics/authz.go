// Copyright 2026 The MSPDeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DecisionMetrics records authorization decision outcomes
type DecisionMetrics struct {
	checks   metric.Int64Counter
	denials  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewDecisionMetrics registers the authorization decision instruments
func NewDecisionMetrics(m *Meter) (*DecisionMetrics, error) {
	checks, err := m.CreateCounter("authz_checks_total", "Total authorization checks evaluated")
	if err != nil {
		return nil, err
	}
	denials, err := m.CreateCounter("authz_denials_total", "Total authorization checks that resulted in denial")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("authz_decision_duration_ms", "Authorization decision latency", "ms")
	if err != nil {
		return nil, err
	}
	return &DecisionMetrics{
		checks:   checks,
		denials:  denials,
		duration: duration,
	}, nil
}

// RecordCheck records one decision. kind distinguishes permission checks
// from hierarchical access resolutions.
func (d *DecisionMetrics) RecordCheck(ctx context.Context, kind string, allowed bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("allowed", allowed),
	)
	d.checks.Add(ctx, 1, attrs)
	if !allowed {
		d.denials.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	d.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
}
