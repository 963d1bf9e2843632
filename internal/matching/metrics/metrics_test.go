package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncrementRun("suggestion", "completed")
	m.AddGroupsCreated("suggestion", 3)
	m.AddGroupsCreated("suggestion", 0)
	m.AddSuggestionsExpired(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("suggestion", "completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GroupsCreated.WithLabelValues("suggestion")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SuggestionsExpired))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRun("lock", "failed")
		m.AddLocksArchived(1)
		m.IncrementResponse("accept")
	})
}
