package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

func TestRecorder(t *testing.T) {
	var r Recorder

	evalBefore := testutil.ToFloat64(EvaluationsTotal.WithLabelValues("unlicensed", "low_level"))
	r.ObserveEvaluation(compliance.StateUnlicensed, compliance.LevelLow)
	if got := testutil.ToFloat64(EvaluationsTotal.WithLabelValues("unlicensed", "low_level")); got != evalBefore+1 {
		t.Fatalf("evaluations = %v, want %v", got, evalBefore+1)
	}
	if got := testutil.ToFloat64(Level); got != 2 {
		t.Fatalf("level gauge = %v, want 2", got)
	}

	transBefore := testutil.ToFloat64(TransitionsTotal.WithLabelValues("valid", "invalid"))
	r.ObserveTransition(compliance.StateValid, compliance.StateInvalid)
	if got := testutil.ToFloat64(TransitionsTotal.WithLabelValues("valid", "invalid")); got != transBefore+1 {
		t.Fatalf("transitions = %v, want %v", got, transBefore+1)
	}

	sentBefore := testutil.ToFloat64(NotificationsTotal.WithLabelValues("email", "sent"))
	failedBefore := testutil.ToFloat64(NotificationsTotal.WithLabelValues("email", "failed"))
	r.ObserveNotification(compliance.ChannelEmail, "invalid_locked", nil)
	r.ObserveNotification(compliance.ChannelEmail, "invalid_locked", errors.New("smtp down"))
	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("email", "sent")); got != sentBefore+1 {
		t.Fatalf("sent = %v, want %v", got, sentBefore+1)
	}
	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("email", "failed")); got != failedBefore+1 {
		t.Fatalf("failed = %v, want %v", got, failedBefore+1)
	}

	failBefore := testutil.ToFloat64(VerifierFailuresTotal)
	r.ObserveVerifierFailure(errors.New("timeout"))
	if got := testutil.ToFloat64(VerifierFailuresTotal); got != failBefore+1 {
		t.Fatalf("verifier failures = %v, want %v", got, failBefore+1)
	}

	r.ObserveEvaluation(compliance.StateValid, compliance.LevelActive)
	if got := testutil.ToFloat64(Level); got != 0 {
		t.Fatalf("level gauge = %v, want 0", got)
	}
}
