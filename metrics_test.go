package lireddit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCountersAndHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Inc(MetricLoginSuccess)
		}()
	}
	wg.Wait()

	m.Observe(MetricSessionResolveLatency, 2*time.Millisecond)
	m.Observe(MetricSessionResolveLatency, 40*time.Millisecond)
	m.Observe(MetricSessionResolveLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Second)

	snap := m.Snapshot()
	assert.Equal(t, uint64(50), snap.Counters[MetricLoginSuccess])
	assert.NotContains(t, snap.Counters, MetricSessionResolveLatency)
	assert.Equal(t, []uint64{1, 0, 0, 1, 0, 0, 0, 1}, snap.Histograms[MetricSessionResolveLatency])
	assert.Len(t, snap.Histograms, 1)
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLogout)
	m.Observe(MetricSessionResolveLatency, time.Millisecond)

	assert.False(t, m.Enabled())
	assert.False(t, m.LatencyEnabled())
	assert.Empty(t, m.Snapshot().Counters)

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	assert.Zero(t, nilMetrics.Value(MetricLogout))
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{100 * time.Millisecond, 4},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bucketIndex(tt.d), tt.d.String())
	}
}

func TestEngineRecordsSessionLatency(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	registerAndAuth(t, e, "alice")

	var total uint64
	for _, n := range e.MetricsSnapshot().Histograms[MetricSessionResolveLatency] {
		total += n
	}
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(1), e.MetricsSnapshot().Counters[MetricSessionResolved])
}
