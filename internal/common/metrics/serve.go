package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

const MetricsPrefix = "scaleprobe_"

var logCountsOnce sync.Once

// ServeMetrics exposes the default Prometheus registry on /metrics at the given port, including
// per-level log message counts. A port of zero disables the server.
// The returned function shuts the server down.
func ServeMetrics(port uint16) (shutdown func()) {
	if port != 0 {
		ExportLogCounts()
	}
	return ServeMetricsFor(port, prometheus.DefaultGatherer)
}

// ExportLogCounts counts logrus messages by level on the default registry. Repeated calls are no-ops.
func ExportLogCounts() {
	logCountsOnce.Do(func() {
		hook, err := promrus.NewPrometheusHook()
		if err != nil {
			log.WithError(err).Warn("Failed to export log message counts")
			return
		}
		log.AddHook(hook)
	})
}

func ServeMetricsFor(port uint16, gatherer prometheus.Gatherer) (shutdown func()) {
	if port == 0 {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("Serving metrics on :%d/metrics", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics server cleanly")
		}
	}
}
