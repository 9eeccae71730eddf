package middleware

import (
	"net/http"

	"github.com/cloo-solutions/ragcore/internal/api"
	"github.com/cloo-solutions/ragcore/internal/domain"
)

// LimitBody caps the request body at limit bytes. A declared Content-Length
// over the limit is refused before the handler runs; an undeclared or
// understated one fails on read with *http.MaxBytesError, which
// api.HandleError reports as REQUEST_TOO_LARGE.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				w.Header().Set("Connection", "close")
				api.HandleError(w, domain.RequestTooLargeError(limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
