package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecision(t *testing.T) {
	m := New()
	m.RecordDecision("cooldown", "", true)
	m.RecordDecision("rate_limit", "waitlist_a", true)
	m.RecordDecision("rate_limit", "waitlist_a", false)
	m.RecordDecision("rate_limit", "waitlist_b", true)

	s := m.GetSnapshot()
	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(3), s.AllowedRequests)
	assert.Equal(t, int64(1), s.BlockedRequests)
	assert.Equal(t, int64(2), s.UniqueClients, "cooldown checks are not per key")

	require.Len(t, s.TopClients, 2)
	assert.Equal(t, "waitlist_a", s.TopClients[0].Key)
	assert.Equal(t, int64(1), s.TopClients[0].BlockedRequests)

	body := scrape(t, m)
	assert.Contains(t, body, `tufngate_decisions_total{check="rate_limit",result="blocked"} 1`)
	assert.Contains(t, body, `tufngate_decisions_total{check="rate_limit",result="allowed"} 2`)
}

func TestTopClientsCapped(t *testing.T) {
	m := New()
	for i := 0; i < 15; i++ {
		for j := 0; j <= i; j++ {
			m.RecordDecision("rate_limit", fmt.Sprintf("k%02d", i), true)
		}
	}
	s := m.GetSnapshot()
	require.Len(t, s.TopClients, topClientLimit)
	assert.Equal(t, "k14", s.TopClients[0].Key)
	assert.Equal(t, int64(15), s.UniqueClients)
}

func TestRecordSubmissionAndSweep(t *testing.T) {
	m := New()
	m.RecordSubmission("waitlist", "success")
	m.RecordSubmission("waitlist", "success")
	m.RecordSubmission("waitlist", "conflict")
	m.RecordSweep(3, nil)
	m.RecordSweep(0, errors.New("redis down"))

	s := m.GetSnapshot()
	assert.Equal(t, int64(2), s.Submissions["waitlist/success"])
	assert.Equal(t, int64(1), s.Submissions["waitlist/conflict"])
	assert.Equal(t, int64(1), s.Sweeps)
	assert.Equal(t, int64(3), s.SweptKeys)
	body := scrape(t, m)
	assert.Contains(t, body, `tufngate_sweeps_total{result="error"} 1`)
	assert.Contains(t, body, `tufngate_swept_keys_total 3`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordSubmission("review", "success")

	body := scrape(t, m)
	assert.Contains(t, body, `tufngate_submissions_total{form="review",outcome="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
