package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizbattle"

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// QuizSessions counts quiz sessions by lifecycle step: started, completed, abandoned.
	QuizSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "sessions_total",
		Help:      "Quiz sessions by lifecycle step.",
	}, []string{"step"})

	QuizAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "answers_total",
		Help:      "Resolved questions by outcome.",
	}, []string{"outcome"})

	LeaderboardSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "leaderboard",
		Name:      "submissions_total",
		Help:      "Leaderboard submissions by result.",
	}, []string{"result"})

	QuestionCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "questions",
		Name:      "cache_lookups_total",
		Help:      "Question cache lookups by result.",
	}, []string{"result"})
)
