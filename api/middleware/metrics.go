package middleware

import (
	"net/http"
	"time"
)

type httpObserver interface {
	Observe(method, route string, status int, elapsed time.Duration)
}

// Metrics records request counts and latency labelled by the matched chi route
// pattern, so /orders/{orderId} is one series rather than one per id.
func Metrics(observer httpObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			observer.Observe(r.Method, route, rec.Status(), time.Since(start))
		})
	}
}
