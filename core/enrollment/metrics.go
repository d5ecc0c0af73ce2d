package enrollment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsStarted         prometheus.Counter
	Transitions             *prometheus.CounterVec
	Submissions             *prometheus.CounterVec
	RejectedFiles           *prometheus.CounterVec
	EmailCheckIndeterminate prometheus.Counter
}

// NewMetrics creates the enrollment metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "campus_enrollment_sessions_started_total",
			Help: "Total number of enrollment sessions started",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_enrollment_transitions_total",
			Help: "Total number of attempts to leave a wizard step, by step and outcome",
		}, []string{"step", "outcome"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_enrollment_submissions_total",
			Help: "Total number of enrollment submissions, by outcome",
		}, []string{"outcome"}),
		RejectedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_enrollment_rejected_files_total",
			Help: "Total number of documents rejected for exceeding the maximum size",
		}, []string{"slot"}),
		EmailCheckIndeterminate: factory.NewCounter(prometheus.CounterOpts{
			Name: "campus_enrollment_email_check_indeterminate_total",
			Help: "Total number of email uniqueness checks that could not be completed",
		}),
	}
}

func (m *Metrics) incrementStarted() {
	m.SessionsStarted.Inc()
}

func (m *Metrics) incrementTransition(step Step, err error) {
	outcome := "advanced"
	if err != nil {
		outcome = "rejected"
	}
	m.Transitions.WithLabelValues(step.String(), outcome).Inc()
}

func (m *Metrics) incrementSubmission(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incrementRejectedFile(slot Slot) {
	m.RejectedFiles.WithLabelValues(string(slot)).Inc()
}

func (m *Metrics) incrementEmailCheckIndeterminate() {
	m.EmailCheckIndeterminate.Inc()
}
