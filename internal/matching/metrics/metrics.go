package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for matching runs and lifecycle sweeps.
type Metrics struct {
	// Runs by kind (lock, suggestion) and outcome (completed, partial, replayed, failed)
	RunsTotal *prometheus.CounterVec

	// Groups persisted by kind
	GroupsCreated *prometheus.CounterVec

	// Per-group failures by reason (conflict, repository)
	GroupErrors *prometheus.CounterVec

	RunDuration   *prometheus.HistogramVec
	SolveDuration *prometheus.HistogramVec

	SuggestionsExpired  prometheus.Counter
	LocksArchived       prometheus.Counter
	SuggestionResponses *prometheus.CounterVec
}

// New registers matching metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers matching metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_runs_total",
			Help: "Matching runs by kind and outcome",
		}, []string{"kind", "outcome"}),

		GroupsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_groups_created_total",
			Help: "Groups persisted as locks or suggestions",
		}, []string{"kind"}),

		GroupErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_group_errors_total",
			Help: "Groups that failed to persist, by reason",
		}, []string{"reason"}),

		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchcore_run_duration_seconds",
			Help:    "Duration of a full matching run including persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),

		SolveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchcore_solve_duration_seconds",
			Help:    "Duration of scoring and solving by strategy",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"strategy"}),

		SuggestionsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_suggestions_expired_total",
			Help: "Suggestions moved to expired by the sweep",
		}),

		LocksArchived: f.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_locks_archived_total",
			Help: "Locks archived after missing the chat unlock deadline",
		}),

		SuggestionResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_suggestion_responses_total",
			Help: "Member responses to suggestions",
		}, []string{"response"}),
	}
}

func (m *Metrics) IncrementRun(kind, outcome string) {
	if m != nil {
		m.RunsTotal.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) AddGroupsCreated(kind string, n int) {
	if m != nil && n > 0 {
		m.GroupsCreated.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) IncrementGroupError(reason string) {
	if m != nil {
		m.GroupErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveRunDuration(kind string, d time.Duration) {
	if m != nil {
		m.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveSolveDuration(strategy string, d time.Duration) {
	if m != nil {
		m.SolveDuration.WithLabelValues(strategy).Observe(d.Seconds())
	}
}

func (m *Metrics) AddSuggestionsExpired(n int) {
	if m != nil && n > 0 {
		m.SuggestionsExpired.Add(float64(n))
	}
}

func (m *Metrics) AddLocksArchived(n int) {
	if m != nil && n > 0 {
		m.LocksArchived.Add(float64(n))
	}
}

func (m *Metrics) IncrementResponse(response string) {
	if m != nil {
		m.SuggestionResponses.WithLabelValues(response).Inc()
	}
}
