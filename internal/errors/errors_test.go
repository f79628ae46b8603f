package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilderDefaults(t *testing.T) {
	ee := Newf("something broke").Build()

	assert.Equal(t, "something broke", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.ErrorCategory())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestErrorBuilderFullChain(t *testing.T) {
	base := fmt.Errorf("dial tcp: connection refused")
	ee := New(base).
		Component("notification").
		Category(CategoryNetwork).
		Priority(PriorityHigh).
		Context("provider", "apns").
		Build()

	assert.Equal(t, "notification", ee.GetComponent())
	assert.Equal(t, CategoryNetwork, ee.ErrorCategory())
	assert.Equal(t, PriorityHigh, ee.Priority)
	assert.Equal(t, "apns", ee.GetContext()["provider"])

	// Unwrapping reaches the original error
	assert.True(t, Is(ee, base))
	assert.Equal(t, base, Unwrap(ee))
}

func TestErrorBuilderInvalidPriorityNormalized(t *testing.T) {
	ee := Newf("x").Priority("urgent-ish").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestEnhancedErrorAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Newf("inner").Category(CategoryTimeout).Build())

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, CategoryTimeout, ee.ErrorCategory())
}

func TestGetContextReturnsCopy(t *testing.T) {
	ee := Newf("x").Context("key", "value").Build()

	ctx := ee.GetContext()
	ctx["key"] = "mutated"
	assert.Equal(t, "value", ee.GetContext()["key"])
}

type countingReporter struct {
	mu    sync.Mutex
	count int
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func TestReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &countingReporter{}
	SetReporter(reporter)
	defer SetReporter(nil)

	ee := Newf("observed failure").Category(CategoryProvider).Build()

	reporter.mu.Lock()
	count := reporter.count
	reporter.mu.Unlock()
	assert.Equal(t, 1, count)
	assert.True(t, ee.IsReported())
}

func TestNoReportingWithoutReporter(t *testing.T) {
	SetReporter(nil)

	ee := Newf("quiet failure").Build()
	assert.False(t, ee.IsReported())
}
