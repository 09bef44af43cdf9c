package session

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordEventApplied("bid_update")
	m.RecordEventApplied("bid_update")
	m.RecordEventDropped("scope_mismatch")
	m.RecordRefetch("round_end")
	m.RecordBidAttempt("confirmed")
	m.RecordUnresolvedBidder()
	m.RecordSnapshot(true, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsApplied.WithLabelValues("bid_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues("scope_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refetches.WithLabelValues("round_end")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bidAttempts.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unresolvedBidders))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "auctionsync_snapshot_fetch_seconds")
}

func TestSessionRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	api := newAPI()
	h := startHarnessWithMetrics(t, api, m)

	h.push(`garbage`)
	h.push(`{"event":"bid_update","payload":{"currentBid":120,"highBidder":"t404"}}`)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.unresolvedBidders) == 1 &&
			testutil.ToFloat64(m.eventsDropped.WithLabelValues("malformed")) == 1 &&
			testutil.ToFloat64(m.eventsApplied.WithLabelValues("bid_update")) == 1
	}, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refetches.WithLabelValues("initial")))
}
