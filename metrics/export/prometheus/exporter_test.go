package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/lireddit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot lireddit.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() lireddit.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectCounters(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: lireddit.MetricsSnapshot{
			Counters: map[lireddit.MetricID]uint64{
				lireddit.MetricLoginSuccess: 7,
				lireddit.MetricPostCreated:  2,
			},
			Histograms: map[lireddit.MetricID][]uint64{},
		},
		dropped: 3,
	})

	expected := `
# HELP lireddit_login_success_total Successful logins.
# TYPE lireddit_login_success_total counter
lireddit_login_success_total 7
# HELP lireddit_post_created_total Posts created.
# TYPE lireddit_post_created_total counter
lireddit_post_created_total 2
# HELP lireddit_audit_dropped_total Audit events dropped due to dispatcher backpressure.
# TYPE lireddit_audit_dropped_total counter
lireddit_audit_dropped_total 3
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"lireddit_login_success_total", "lireddit_post_created_total", "lireddit_audit_dropped_total")
	require.NoError(t, err)
}

func TestCollectHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: lireddit.MetricsSnapshot{
			Counters: map[lireddit.MetricID]uint64{},
			Histograms: map[lireddit.MetricID][]uint64{
				lireddit.MetricSessionResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	expected := `
# HELP lireddit_session_resolve_latency_seconds Session resolution latency.
# TYPE lireddit_session_resolve_latency_seconds histogram
lireddit_session_resolve_latency_seconds_bucket{le="0.005"} 1
lireddit_session_resolve_latency_seconds_bucket{le="0.01"} 3
lireddit_session_resolve_latency_seconds_bucket{le="0.025"} 6
lireddit_session_resolve_latency_seconds_bucket{le="0.05"} 10
lireddit_session_resolve_latency_seconds_bucket{le="0.1"} 15
lireddit_session_resolve_latency_seconds_bucket{le="0.25"} 21
lireddit_session_resolve_latency_seconds_bucket{le="0.5"} 28
lireddit_session_resolve_latency_seconds_bucket{le="+Inf"} 36
lireddit_session_resolve_latency_seconds_sum 0
lireddit_session_resolve_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected), "lireddit_session_resolve_latency_seconds")
	require.NoError(t, err)
}

func TestHistogramOmittedWhenLatencyDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: lireddit.MetricsSnapshot{
		Counters:   map[lireddit.MetricID]uint64{},
		Histograms: map[lireddit.MetricID][]uint64{},
	}})
	assert.Zero(t, testutil.CollectAndCount(exp, "lireddit_session_resolve_latency_seconds"))
}

func TestExporterLintClean(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: lireddit.MetricsSnapshot{}})
	problems, err := testutil.CollectAndLint(exp)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestHandler(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: lireddit.MetricsSnapshot{
		Counters: map[lireddit.MetricID]uint64{lireddit.MetricLogout: 4},
	}})

	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "lireddit_logout_total 4")
	assert.Contains(t, string(body), "go_goroutines")
}

func BenchmarkCollect(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: lireddit.MetricsSnapshot{
			Counters: map[lireddit.MetricID]uint64{
				lireddit.MetricLoginSuccess:    1000,
				lireddit.MetricLoginFailure:    40,
				lireddit.MetricSessionResolved: 8000,
			},
			Histograms: map[lireddit.MetricID][]uint64{
				lireddit.MetricSessionResolveLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = testutil.CollectAndCount(exp)
	}
}
