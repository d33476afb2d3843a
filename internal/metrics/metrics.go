package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submissions counts attendance submissions by outcome code.
var Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_submissions_total",
	Help: "Attendance submissions by decision code.",
}, []string{"code"})

// SessionStarts counts session-start attempts by result.
var SessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_session_starts_total",
	Help: "Session start attempts by result.",
}, []string{"result"})
