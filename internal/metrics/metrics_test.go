package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDocument(t *testing.T) {
	r := NewRegistry()
	r.ObserveDocument("kehe", "OK", 2, 5, 10*time.Millisecond)
	r.ObserveDocument("kehe", "FAILED", 0, 0, time.Millisecond)
	r.ObserveFailure("kehe", "read")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Documents.WithLabelValues("kehe", "OK")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Orders.WithLabelValues("kehe")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.LineItems.WithLabelValues("kehe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Failures.WithLabelValues("kehe", "read")))
}

func TestObserveBatch(t *testing.T) {
	r := NewRegistry()
	r.ObserveBatch(time.Second, 7, 3, map[string]int{"vendor_item": 2})

	assert.Equal(t, 7.0, testutil.ToFloat64(r.CacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.CacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Unresolved.WithLabelValues("vendor_item")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveDocument("x", "OK", 1, 1, time.Second)
		r.ObserveFailure("x", "read")
		r.ObserveBatch(time.Second, 1, 1, nil)
		r.SetQueueDepth(3)
	})
}
