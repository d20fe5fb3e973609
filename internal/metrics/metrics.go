package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks complaint, feedback and classifier activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ComplaintsCreated  prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	ComplaintsDeleted  *prometheus.CounterVec
	FeedbackSubmitted  *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	ClassifierFailures *prometheus.CounterVec
	PermissionDenials  *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ComplaintsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "civic_complaints_created_total",
			Help: "Total number of complaints filed",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_complaint_transitions_total",
			Help: "Complaint status transitions by source and target status",
		}, []string{"from", "to"}),
		ComplaintsDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_complaints_deleted_total",
			Help: "Complaint deletions by the role of the deleting principal",
		}, []string{"role"}),
		FeedbackSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_feedback_submitted_total",
			Help: "Persisted feedback records by sentiment label",
		}, []string{"sentiment"}),
		ClassifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "civic_sentiment_classify_duration_seconds",
			Help:    "Duration of sentiment classifier calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
		}),
		ClassifierFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_sentiment_failures_total",
			Help: "Sentiment classifier failures by reason",
		}, []string{"reason"}),
		PermissionDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_permission_denials_total",
			Help: "Denied operations by action",
		}, []string{"action"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_http_requests_total",
			Help: "HTTP requests by method and response status",
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) IncrementComplaintsCreated() {
	if m == nil {
		return
	}
	m.ComplaintsCreated.Inc()
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementDeleted(role string) {
	if m == nil {
		return
	}
	m.ComplaintsDeleted.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementFeedback(sentiment string) {
	if m == nil {
		return
	}
	m.FeedbackSubmitted.WithLabelValues(sentiment).Inc()
}

// ObserveClassify records a classifier call. Call with time.Now() taken before the call.
func (m *Metrics) ObserveClassify(start time.Time) {
	if m == nil {
		return
	}
	m.ClassifyDuration.Observe(time.Since(start).Seconds())
}

// IncrementClassifierFailure takes a reason such as "timeout", "error" or "invalid_response".
func (m *Metrics) IncrementClassifierFailure(reason string) {
	if m == nil {
		return
	}
	m.ClassifierFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementPermissionDenied(action string) {
	if m == nil {
		return
	}
	m.PermissionDenials.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementHTTPRequest(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, status).Inc()
}
