// Package metrics holds the engine's Prometheus collectors: tick
// latency, expansion/TP/SL/hedge counters, cap-refusal and
// fallback-inference counters, and a per-group completion high-water
// gauge.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TickLatency is the time spent inside ProcessTick's critical section,
// per symbol.
var TickLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "tick_latency_ms",
		Help:      "Time spent processing one tick, in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250},
	},
	[]string{"symbol"},
)

// TicksDropped counts ticks dropped by the busy guard because a prior
// tick on the same symbol was still executing.
var TicksDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "ticks_dropped_total",
		Help:      "Ticks dropped by the busy guard without processing",
	},
	[]string{"symbol"},
)

// ExpansionsTotal counts step-trigger and TP-driven expansions.
var ExpansionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "expansions_total",
		Help:      "Grid expansions executed",
	},
	[]string{"symbol", "direction", "atomicity"}, // atomicity: atomic, non_atomic
)

// TPEventsTotal and SLEventsTotal count dropped-ticket classifications.
var TPEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "tp_events_total",
		Help:      "Take-profit events classified",
	},
	[]string{"symbol"},
)

var SLEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "sl_events_total",
		Help:      "Stop-loss events classified",
	},
	[]string{"symbol"},
)

// FallbackInferenceTotal counts dropped tickets whose TP/SL classification
// had to fall back to nearest-distance inference.
var FallbackInferenceTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "fallback_inference_total",
		Help:      "Dropped tickets classified via nearest-distance fallback",
	},
	[]string{"symbol"},
)

// CapRefusalsTotal counts market orders refused by the completion cap
// gate.
var CapRefusalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "cap_refusals_total",
		Help:      "Orders refused by the completion cap gate",
	},
	[]string{"symbol"},
)

// HedgesOpenedTotal counts hedge positions opened by the hedge supervisor.
var HedgesOpenedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "hedges_opened_total",
		Help:      "Hedge positions opened",
	},
	[]string{"symbol"},
)

// GroupCHighwater exposes the current completion high-water mark per
// group, for dashboards and the saturation-check alerting path.
var GroupCHighwater = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "gridengine",
		Subsystem: "engine",
		Name:      "group_c_highwater",
		Help:      "Completion high-water mark for the group",
	},
	[]string{"symbol", "group"},
)

// RecordTickLatency observes the tick-processing duration for symbol.
func RecordTickLatency(symbol string, ms float64) {
	TickLatency.WithLabelValues(symbol).Observe(ms)
}

// RecordTickDropped increments the busy-guard drop counter.
func RecordTickDropped(symbol string) {
	TicksDropped.WithLabelValues(symbol).Inc()
}

// RecordExpansion tags one expansion by direction ("bullish"/"bearish")
// and atomicity ("atomic"/"non_atomic").
func RecordExpansion(symbol, direction, atomicity string) {
	ExpansionsTotal.WithLabelValues(symbol, direction, atomicity).Inc()
}

// RecordTP and RecordSL tag a classified dropped ticket.
func RecordTP(symbol string) { TPEventsTotal.WithLabelValues(symbol).Inc() }
func RecordSL(symbol string) { SLEventsTotal.WithLabelValues(symbol).Inc() }

// RecordFallbackInference tags a classification that fell back to
// nearest-distance inference.
func RecordFallbackInference(symbol string) {
	FallbackInferenceTotal.WithLabelValues(symbol).Inc()
}

// RecordCapRefusal tags an order refused by the completion cap gate.
func RecordCapRefusal(symbol string) {
	CapRefusalsTotal.WithLabelValues(symbol).Inc()
}

// RecordHedgeOpened tags a hedge position opened by the supervisor.
func RecordHedgeOpened(symbol string) {
	HedgesOpenedTotal.WithLabelValues(symbol).Inc()
}

// SetGroupHighwater updates the completion high-water gauge for a group.
func SetGroupHighwater(symbol string, groupID uint32, c uint32) {
	GroupCHighwater.WithLabelValues(symbol, strconv.FormatUint(uint64(groupID), 10)).Set(float64(c))
}
