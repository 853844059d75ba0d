package middleware

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of unauthorized requests",
		},
		[]string{"reason"},
	)

	summonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacha_summons_total",
			Help: "Total philosopher draws by rarity and outcome",
		},
		[]string{"rarity", "outcome"},
	)
	ticketsSpentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gacha_tickets_spent_total",
			Help: "Total gacha tickets consumed by summons",
		},
	)
	levelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_level_ups_total",
			Help: "Total user level-ups",
		},
	)
	achievementsUnlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Total achievements newly completed",
		},
	)
)

// InitPrometheus registers the metrics. Call this from main.go
func InitPrometheus() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(authRejections)
	prometheus.MustRegister(summonsTotal)
	prometheus.MustRegister(ticketsSpentTotal)
	prometheus.MustRegister(levelUpsTotal)
	prometheus.MustRegister(achievementsUnlockedTotal)
}

// RecordSummon counts one draw outcome.
func RecordSummon(rarity string, isNew bool) {
	outcome := "duplicate"
	if isNew {
		outcome = "new"
	}
	summonsTotal.WithLabelValues(rarity, outcome).Inc()
}

// RecordTicketsSpent counts consumed summon currency.
func RecordTicketsSpent(n int) {
	ticketsSpentTotal.Add(float64(n))
}

// RecordLevelUp counts one user level-up.
func RecordLevelUp() {
	levelUpsTotal.Inc()
}

// RecordAchievementsUnlocked counts newly completed achievements.
func RecordAchievementsUnlocked(n int) {
	achievementsUnlockedTotal.Add(float64(n))
}

// MonitorMiddleware wraps the router to track all request stats
func MonitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, http.StatusText(ww.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.URL.Path, r.Method).Observe(duration)

		if ww.statusCode == http.StatusUnauthorized {
			authRejections.WithLabelValues("401_unauthorized").Inc()
		} else if ww.statusCode == http.StatusForbidden {
			authRejections.WithLabelValues("403_forbidden").Inc()
		}
	})
}

// BasicAuthMiddleware protects /metrics
func BasicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()

		metricsUser := os.Getenv("METRICS_USER")
		metricsPass := os.Getenv("METRICS_PASS")

		if !ok || user != metricsUser || pass != metricsPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PprofSecurityMiddleware protects /debug/pprof
func PprofSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Pprof-Secret") != os.Getenv("PPROF_SECRET") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
