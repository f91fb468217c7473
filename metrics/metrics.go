// metrics/metrics.go
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "clinicweb"

var (
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.01, 0.1, 0.3, 1.2, 5},
		},
		[]string{"path", "method", "status"},
	)

	webhookVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_verifications_total",
			Help:      "Content webhook requests by verification result.",
		},
		[]string{"result"},
	)

	previewTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_transitions_total",
			Help:      "Preview mode entries and exits.",
		},
		[]string{"action", "outcome"},
	)

	rebuildTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_triggers_total",
			Help:      "Deploy hook invocations by hook name and outcome.",
		},
		[]string{"hook", "outcome"},
	)

	cmsFetch = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cms_fetch_seconds",
			Help:      "Latency of CMS queries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"perspective", "outcome"},
	)
)

// RegisterDefault registers the Go runtime and process collectors plus every
// collector this package owns. Call once at startup; repeat calls are no-ops.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, "HTTP request histogram", reqDuration)
	mustRegister(logger, "webhook verification counter", webhookVerifications)
	mustRegister(logger, "preview transition counter", previewTransitions)
	mustRegister(logger, "rebuild trigger counter", rebuildTriggers)
	mustRegister(logger, "CMS fetch histogram", cmsFetch)
}

func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return
		}
		if logger != nil {
			logger.Fatal("failed to register "+name, zap.Error(err))
		}
		panic("metrics: failed to register " + name + ": " + err.Error())
	}
}

// WebhookVerification counts one webhook request. result is one of
// "valid", "invalid", "missing", "unreadable" or "unconfigured".
func WebhookVerification(result string) {
	webhookVerifications.WithLabelValues(result).Inc()
}

// PreviewTransition counts a preview entry or exit ("enter"/"exit") with its
// outcome ("ok", "denied").
func PreviewTransition(action, outcome string) {
	previewTransitions.WithLabelValues(action, outcome).Inc()
}

// RebuildTrigger counts one deploy hook call.
func RebuildTrigger(hook, outcome string) {
	rebuildTriggers.WithLabelValues(hook, outcome).Inc()
}

// ObserveCMSFetch records the latency of a CMS query. outcome is one of
// "ok", "cached", "unavailable", "canceled" or "error".
func ObserveCMSFetch(perspective, outcome string, d time.Duration) {
	cmsFetch.WithLabelValues(perspective, outcome).Observe(d.Seconds())
}

// maxPathLabelLength bounds the path label.
const maxPathLabelLength = 256

// HTTPMetrics records request durations labeled by chi route pattern, so
// /api/content/{name} stays one series regardless of name.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		statusCode := ww.Status()
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		if statusCode < 100 || statusCode > 599 {
			statusCode = http.StatusInternalServerError
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		if len(path) > maxPathLabelLength {
			path = truncateUTF8(path, maxPathLabelLength-3) + "..."
		}

		reqDuration.WithLabelValues(path, r.Method, strconv.Itoa(statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// truncateUTF8 cuts s to at most maxBytes without splitting a rune.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
