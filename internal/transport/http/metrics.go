package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_requests_total",
			Help: "Total number of survey page requests by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	submissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_submissions_total",
		Help: "Total number of finished survey submissions.",
	})

	stepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_step_errors_total",
		Help: "Total number of submitted steps rejected by validation.",
	})
)
