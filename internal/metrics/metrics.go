package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pumpsentinel"

var (
	// TokensDetected counts pool initialisations seen by the monitor.
	TokensDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "tokens_detected_total",
		Help:      "New tokens detected from pool initialisation logs",
	})

	// TokensProcessed counts pipeline outcomes. Labels: result (posted, skipped_price, failed)
	TokensProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "tokens_processed_total",
		Help:      "Tokens taken off the queue, by outcome",
	}, []string{"result"})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "queue_length",
		Help:      "Tokens waiting for analysis",
	})

	TweetsPosted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "twitter",
		Name:      "tweets_posted_total",
		Help:      "Tweets successfully posted",
	})

	// Reconnects counts websocket reconnect attempts. Labels: reason (rate_limited, error)
	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "reconnects_total",
		Help:      "Log subscription reconnect attempts",
	}, []string{"reason"})

	// AnalysisDuration measures end to end analysis latency. Labels: kind (monitor, security, credibility)
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Token analysis latency in seconds",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"kind"})

	// RiskLevels counts computed risk levels. Labels: level
	RiskLevels = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "assessments_total",
		Help:      "Risk assessments by resulting level",
	}, []string{"level"})

	// LLMRequests counts chat completion calls. Labels: provider, status (ok, error)
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Chat completion requests",
	}, []string{"provider", "status"})
)

// ObserveSince records the elapsed time for kind.
func ObserveSince(kind string, start time.Time) {
	AnalysisDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()
}
