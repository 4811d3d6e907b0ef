package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *CallControlMetrics {
	t.Helper()
	m, err := NewCallControlMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestRecordRouteSwitch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRouteSwitch("bluetooth", StatusSuccess)
	m.RecordRouteSwitch("bluetooth", StatusSuccess)
	m.RecordRouteSwitch("speaker", StatusRejected)

	assert.InDelta(t, 2, testutil.ToFloat64(m.routeSwitchesTotal.WithLabelValues("bluetooth", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.routeSwitchesTotal.WithLabelValues("speaker", StatusRejected)), 0)
}

func TestRecordPlatformCommandSteps(t *testing.T) {
	m := newTestMetrics(t)

	testCases := []struct {
		step   string
		status string
	}{
		{"teardownSco", StatusSuccess},
		{"speakerphone", StatusSuccess},
		{"enableSco", StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.step, func(t *testing.T) {
			m.RecordPlatformCommand(tc.step, tc.status)
			assert.InDelta(t, 1, testutil.ToFloat64(m.platformCommandsTotal.WithLabelValues(tc.step, tc.status)), 0)
		})
	}
}

func TestCaptureMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCaptureTransition("idle", "permissionPending")
	m.RecordStaleGrantCallback()
	m.RecordStaleGrantCallback()

	assert.InDelta(t, 1, testutil.ToFloat64(m.captureTransitionsTotal.WithLabelValues("idle", "permissionPending")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.staleGrantCallbacksTotal), 0)
}

func TestHubMetrics(t *testing.T) {
	m := newTestMetrics(t)

	m.SetSubscribers(3)
	m.SetSubscribers(2)
	m.RecordSubscriberDropped("overflow")
	m.RecordNotification("audioDeviceChanged")

	assert.InDelta(t, 2, testutil.ToFloat64(m.hubSubscribers), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.subscribersDroppedTotal.WithLabelValues("overflow")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("audioDeviceChanged")), 0)
}

func TestRecorderInterface(t *testing.T) {
	m := newTestMetrics(t)
	var r Recorder = m

	r.RecordOperation(OpSetRoute, StatusSuccess)
	r.RecordError(OpStartCapture, "authorization")
	r.RecordDuration(OpSetRoute, 0.002)

	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpSetRoute, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpStartCapture, "authorization")), 0)

	assert.Equal(t, 1, testutil.CollectAndCount(m.operationDuration))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewCallControlMetrics(registry)
	require.NoError(t, err)

	_, err = NewCallControlMetrics(registry)
	assert.Error(t, err)
}
