// Package metrics defines the prometheus collectors cloudplay exports.
//
// Collectors are registered with the default registry by promauto. Cache collectors are
// labelled by namespace ("music", "lyric", "local").
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Integrity cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_cache_hits_total",
			Help: "Total number of verified cache lookups",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_cache_misses_total",
			Help: "Total number of cache lookups that missed",
		},
		[]string{"namespace"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_cache_evictions_total",
			Help: "Total number of entries evicted to stay within budget",
		},
		[]string{"namespace"},
	)

	CacheIntegrityMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_cache_integrity_mismatches_total",
			Help: "Total number of blobs removed because their hash disagreed with the index",
		},
		[]string{"namespace"},
	)

	CacheBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudplay_cache_bytes",
			Help: "Bytes currently accounted to the cache",
		},
		[]string{"namespace"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudplay_cache_entries",
			Help: "Entries currently indexed by the cache",
		},
		[]string{"namespace"},
	)
)

// Memoizer metrics
var (
	MemoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_memo_lookups_total",
			Help: "Total number of memoized response lookups",
		},
		[]string{"result"}, // "hit", "miss", "expired"
	)
)

// Remote API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_api_requests_total",
			Help: "Total number of remote API requests",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudplay_api_request_duration_seconds",
			Help:    "Remote API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	DownloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudplay_download_bytes_total",
			Help: "Total bytes downloaded from media URLs",
		},
	)
)

// Queue and playback metrics
var (
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudplay_queue_length",
			Help: "Number of items in the playback queue",
		},
	)

	QueueRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_queue_refreshes_total",
			Help: "Refresh requests by outcome",
		},
		[]string{"outcome"}, // "accepted", "dropped", "failed"
	)

	PrefetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_prefetched_total",
			Help: "Queue items populated ahead of playback",
		},
		[]string{"status"},
	)
)

// Handler returns the prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
