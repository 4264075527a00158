package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PaymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verification outcomes",
		},
		[]string{"result"},
	)
	CreditsPurchased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_purchased_total",
			Help: "Credits added by verified payments",
		},
	)
	CreditsDebited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_debited_total",
			Help: "Credits spent on game sessions",
		},
	)
	ScoreSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_submissions_total",
			Help: "Score submission outcomes",
		},
		[]string{"result"},
	)
	LeaderboardArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leaderboard_rows_archived_total",
			Help: "Daily leaderboard rows moved to history",
		},
	)
)

func init() {
	prometheus.MustRegister(PaymentVerifications)
	prometheus.MustRegister(CreditsPurchased)
	prometheus.MustRegister(CreditsDebited)
	prometheus.MustRegister(ScoreSubmissions)
	prometheus.MustRegister(LeaderboardArchived)
}

// resultLabel collapses an error into a low-cardinality metric label.
func resultLabel(err error, labels map[error]string) string {
	if err == nil {
		return "success"
	}
	for target, label := range labels {
		if errors.Is(err, target) {
			return label
		}
	}
	return "error"
}
