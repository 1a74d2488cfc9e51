package observability_test

import (
	"errors"
	"testing"

	"unholygrail/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveFlow(t *testing.T) {
	m := observability.NewMetrics()

	m.ObserveFlow("signin", "success")
	m.ObserveFlow("signin", "success")
	m.ObserveFlow("signin", "bad_credentials")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthFlowTotal.WithLabelValues("signin", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFlowTotal.WithLabelValues("signin", "bad_credentials")))
}

func TestMetrics_MailCounters(t *testing.T) {
	m := observability.NewMetrics()

	m.ObservePublish("welcome-email", nil)
	m.ObservePublish("welcome-email", errors.New("broker down"))
	m.ObserveDelivery("recover-email", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailPublishedTotal.WithLabelValues("welcome-email", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailPublishedTotal.WithLabelValues("welcome-email", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailDeliveredTotal.WithLabelValues("recover-email", "success")))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.ObserveFlow("signup", "success")
		m.ObservePublish("welcome-email", nil)
		m.ObserveDelivery("welcome-email", nil)
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		observability.NewMetrics()
		observability.NewMetrics()
	})
}
