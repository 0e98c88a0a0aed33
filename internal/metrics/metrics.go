// Package metrics exports license compliance activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

var (
	// EvaluationsTotal counts evaluations by resulting state and level.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "compliance",
		Name:      "evaluations_total",
		Help:      "Total compliance evaluations by effective state and level.",
	}, []string{"state", "level"})

	// TransitionsTotal counts persisted state changes.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "compliance",
		Name:      "transitions_total",
		Help:      "Total license state transitions.",
	}, []string{"from", "to"})

	// NotificationsTotal counts dispatch attempts by channel and outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "compliance",
		Name:      "notifications_total",
		Help:      "Total compliance notification attempts by channel and result.",
	}, []string{"channel", "result"})

	// VerifierFailuresTotal counts checks where the verifier could not answer.
	VerifierFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "compliance",
		Name:      "verifier_failures_total",
		Help:      "Total license verifier failures.",
	})

	// Level is the severity of the most recent evaluation (0 active .. 4 locked).
	Level = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "compliance",
		Name:      "level",
		Help:      "Restriction level of the last evaluation (0=active, 4=locked).",
	})
)

const (
	resultSent   = "sent"
	resultFailed = "failed"
)

// Recorder is a compliance.Observer backed by the package metrics.
type Recorder struct{}

var _ compliance.Observer = Recorder{}

func (Recorder) ObserveEvaluation(state compliance.State, level compliance.Level) {
	EvaluationsTotal.WithLabelValues(string(state), string(level)).Inc()
	Level.Set(float64(level.Severity()))
}

func (Recorder) ObserveTransition(from, to compliance.State) {
	TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (Recorder) ObserveNotification(channel compliance.Channel, _ string, err error) {
	result := resultSent
	if err != nil {
		result = resultFailed
	}
	NotificationsTotal.WithLabelValues(string(channel), result).Inc()
}

func (Recorder) ObserveVerifierFailure(error) {
	VerifierFailuresTotal.Inc()
}
