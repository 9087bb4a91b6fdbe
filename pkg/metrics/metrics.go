package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spencer-p/tidelink/pkg/middleware"
)

const subsystem = "tidelink"

var (
	requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "request_latency",
			Subsystem: subsystem,
			Help:      "HTTP request latencies in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.2, 0.4, 0.8, 1.0, 2.0, 4.0, 8.0, 16.0, 32.0},
		},
		[]string{"verb", "path", "code"},
	)

	pageRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "page_renders_total",
			Subsystem: subsystem,
			Help:      "Redirect pages rendered, by whether the cache served them.",
		},
		[]string{"cached"},
	)

	siblingRedirects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "sibling_redirects_total",
			Subsystem: subsystem,
			Help:      "Visitors sent straight to the sibling service.",
		},
	)

	replacements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "placeholder_replacements_total",
			Subsystem: subsystem,
			Help:      "Hostname markers replaced in static pages.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestLatency,
		pageRenders,
		siblingRedirects,
		replacements,
	)
}

func ObserveRequestLatency(verb, path, code string, latency float64) {
	requestLatency.With(prometheus.Labels{
		"code": code,
		"verb": verb,
		"path": path,
	}).Observe(latency)
}

func ObservePageRender(cached bool) {
	pageRenders.WithLabelValues(strconv.FormatBool(cached)).Inc()
}

func ObserveSiblingRedirect() {
	siblingRedirects.Inc()
}

func ObserveReplacements(n int) {
	replacements.Add(float64(n))
}

// unmatched labels requests that no route claimed.
const unmatched = "unmatched"

// routeLabel names the route that matched r by its path template, so the
// number of label values is bounded by the number of routes.
func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return unmatched
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return unmatched
	}
	return tpl
}

// LatencyHandler observes request latency by route. It must run inside a mux
// router (Router.Use, or wrapping the NotFoundHandler) to see the matched
// route.
func LatencyHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.Now()
		verb := r.Method
		path := routeLabel(r)
		rec := middleware.NewStatusRecorder(w)

		// Defer metric observing. Any panics in next are reported as 500 errors
		// and then re-thrown.
		defer func() {
			if err := recover(); err != nil {
				ObserveRequestLatency(verb, path, "500", time.Since(t).Seconds())
				panic(err)
			}
			ObserveRequestLatency(verb, path, strconv.Itoa(rec.Status), time.Since(t).Seconds())
		}()

		next.ServeHTTP(rec, r)
	})
}
