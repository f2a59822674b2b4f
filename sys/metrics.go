package sys

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_downloads_total",
		Help: "Media acquisitions by outcome (cached, ok, failed, rejected).",
	}, []string{"result"})

	DownloadAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resonance_download_attempts_total",
		Help: "Individual fetch attempts, including retries.",
	})

	CookiePoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resonance_cookie_pool_size",
		Help: "Credential files currently eligible for draws.",
	})

	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resonance_active_calls",
		Help: "Chats with a live call.",
	})

	CallEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_call_events_total",
		Help: "Transport events received by kind.",
	}, []string{"kind"})

	PlaybackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_playback_errors_total",
		Help: "play_media failures by class (fatal, skip).",
	}, []string{"class"})
)

// StartMetricsServer is a daemon starter serving /metrics on addr.
// An empty addr disables it.
func StartMetricsServer(addr string) func(ctx context.Context) (bool, func(), func()) {
	return func(ctx context.Context) (bool, func(), func()) {
		if addr == "" {
			return false, nil, nil
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		run := func() {
			LogMetrics(MsgMetricsListening, addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				LogError(MsgMetricsFailed, err)
			}
		}
		shutdown := func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}
		return true, run, shutdown
	}
}
