package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jwoudenberg/elm-pair/internal/telemetry"
)

func TestObserveRefactorIncrementsEmittedCounter(t *testing.T) {
	m := telemetry.New()
	m.ObserveRefactor("R1-rename-at-definition", "emitted", "none")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RefactorsEmitted.WithLabelValues("R1-rename-at-definition")))
}

func TestObserveRefactorIncrementsDiscardedCounterWithReason(t *testing.T) {
	m := telemetry.New()
	m.ObserveRefactor("R1-rename-at-definition", "discarded", "collision-without-safe-rename")

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.RefactorsDiscarded.WithLabelValues("R1-rename-at-definition", "collision-without-safe-rename")))
}

func TestActiveSessionsGaugeTracksIncrementsAndDecrements(t *testing.T) {
	m := telemetry.New()
	m.ActiveSessions.Inc()
	m.ActiveSessions.Inc()
	m.ActiveSessions.Dec()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))
}

func TestSetWatchEventsDroppedReflectsCumulativeTotal(t *testing.T) {
	m := telemetry.New()
	m.SetWatchEventsDropped(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.WatchEventsDropped))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	m := telemetry.New()
	m.ObserveRefactor("R1-rename-at-definition", "emitted", "none")

	count, err := testutil.GatherAndCount(m.Registry, "elm_pair_refactors_emitted_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotNil(t, m.Handler())
}
