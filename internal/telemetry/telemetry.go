// Package telemetry backs gossip's PutMetricDatum/QueryMetrics with a
// github.com/rcrowley/go-metrics registry. Telemetry owns its own
// instance rather than a package-level registry. It implements only the
// PutMetricDatum/QueryMetrics pair of gossip.Persistence, not the whole
// interface, so it is not passed to gossip.NewManager on its own.
package telemetry

import (
	"context"
	"sync"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/Roemello4/holochain/gossip"
)

// Telemetry records QuickGossip/SlowGossip/ConnectError data points. Each
// kind is mirrored into a go-metrics Meter for rate observability (wire
// it into a metrics-collection dashboard), while the exact datum log
// backing QueryMetrics is kept alongside it — a Meter reports an
// aggregate rate, not the discrete per-agent points QueryMetrics needs
// to answer "when did X last gossip quickly".
type Telemetry struct {
	registry gometrics.Registry
	meters   map[gossip.MetricKind]gometrics.Meter

	mu   sync.Mutex
	data []gossip.MetricDatum
}

// New constructs a Telemetry with its own registry and one registered
// meter per MetricKind.
func New() *Telemetry {
	registry := gometrics.NewRegistry()
	t := &Telemetry{
		registry: registry,
		meters:   make(map[gossip.MetricKind]gometrics.Meter),
	}
	for _, kind := range []gossip.MetricKind{gossip.QuickGossip, gossip.SlowGossip, gossip.ConnectError} {
		t.meters[kind] = gometrics.NewRegisteredMeter("gossip/"+kind.String(), registry)
	}
	return t
}

// Registry exposes the underlying go-metrics registry so a caller can
// wire it into a metrics-collection loop or any other metrics.Registry
// consumer.
func (t *Telemetry) Registry() gometrics.Registry { return t.registry }

var _ interface {
	PutMetricDatum(ctx context.Context, datum gossip.MetricDatum) error
	QueryMetrics(ctx context.Context, query gossip.MetricQuery) ([]gossip.MetricDatum, error)
} = (*Telemetry)(nil)

// PutMetricDatum marks the matching meter and appends datum to the log
// QueryMetrics reads from.
func (t *Telemetry) PutMetricDatum(ctx context.Context, datum gossip.MetricDatum) error {
	if meter, ok := t.meters[datum.Kind]; ok {
		meter.Mark(1)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = append(t.data, datum)
	return nil
}

// QueryMetrics returns every recorded datum matching query.
func (t *Telemetry) QueryMetrics(ctx context.Context, query gossip.MetricQuery) ([]gossip.MetricDatum, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []gossip.MetricDatum
	for _, d := range t.data {
		if query.Matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}
