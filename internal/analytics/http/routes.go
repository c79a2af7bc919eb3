package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/invoicely/invoicely/internal/platform/httpx"
)

// ExportsPerMinute caps CSV exports per client address.
const ExportsPerMinute = 10

// MountRoutes registers analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(ExportsPerMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export limit reached, retry later")
		}),
	)

	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/", h.handleAnalytics)
		r.Get("/statistics", h.handleStatistics)
		r.Get("/dashboard", h.handleDashboard)
		r.With(limiter).Get("/export.csv", h.handleCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
