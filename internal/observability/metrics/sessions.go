// Package metrics emits session lifecycle metrics to a StatsD sink.
package metrics

import (
	"context"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	obserrors "github.com/mattcg/oauth-sessions/internal/observability/errors"
	"github.com/mattcg/oauth-sessions/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// SessionEvents returns a lifecycle subscriber counting session.event by type.
// Provider is tagged when the event carries a session.
func SessionEvents(sink statsd.Sink) func(context.Context, oauth.Event) {
	return func(_ context.Context, ev oauth.Event) {
		if sink == nil {
			return
		}
		tags := map[string]string{"type": string(ev.Type)}
		if ev.Session.Provider != "" {
			tags["provider"] = ev.Session.Provider
		}
		sink.Count("session.event", 1, tags)
	}
}

// ExchangeMetric describes one completed provider callback.
type ExchangeMetric struct {
	Provider string
	Duration time.Duration
	Err      error
}

// EmitExchange counts callback outcomes and records their latency.
func EmitExchange(sink statsd.Sink, in ExchangeMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": ResultSuccess}
	if in.Provider != "" {
		tags["provider"] = in.Provider
	}
	if in.Err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("session.exchange", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.exchange.duration", in.Duration, CloneTags(tags))
	}
}

// PurgeMetric describes one sweep of expired session rows.
type PurgeMetric struct {
	Count    int64
	Duration time.Duration
	Err      error
}

// EmitPurge records a purge sweep outcome.
func EmitPurge(sink statsd.Sink, in PurgeMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Count == 0:
		result = ResultNoop
	}
	tags := map[string]string{"result": result}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("session.purge", 1, tags)
	if in.Count > 0 {
		sink.Count("session.purged", in.Count, nil)
	}
	sink.Timing("session.purge.duration", in.Duration, CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
