package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the point economy and the feeds. Exposed on /metrics via
// promhttp in cmd/api.
var (
	PointsEarned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_points_earned_total",
		Help: "Total points credited across all wallets.",
	})
	PointsSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_points_spent_total",
		Help: "Total points debited across all wallets.",
	})
	AttendanceSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_attendance_sessions_total",
		Help: "Attendance sessions issued by teachers.",
	})
	AttendanceMarks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_attendance_marks_total",
		Help: "Successful attendance redemptions.",
	})
	ItemsBorrowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_items_borrowed_total",
		Help: "Marketplace borrow transitions.",
	})
	ItemsReturned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_items_returned_total",
		Help: "Marketplace return transitions.",
	})
	PerksRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_perks_redeemed_total",
		Help: "Privilege store redemptions.",
	})
	PostsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_posts_blocked_total",
		Help: "Posts rejected by the content classifier.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "universe_messages_sent_total",
		Help: "Chat messages appended.",
	})
)
