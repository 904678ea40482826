package dashboardhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const (
	exportLimit  = 10
	exportWindow = time.Minute
)

// MountRoutes registers the dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", h.handleView)
		r.Get("/charts/{anchor}.svg", h.handleChart)

		r.Post("/project", h.handleProject)
		r.Post("/period", h.handlePeriod)
		r.Post("/location", h.handleLocation)
		r.Post("/device", h.handleDevice)
		r.Post("/days", h.handleDays)
		r.Post("/filters", h.handleFilters)
		r.Post("/range/{range}", h.handleRange)
		r.Post("/page/next", h.handleNextPage)
		r.Post("/page/prev", h.handlePreviousPage)
		r.Post("/theme/toggle", h.handleThemeToggle)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/active/refresh", h.handleActiveRefresh)
		r.Delete("/errors/{kind}", h.handleDismissError)

		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleExportCSV)
			gr.Get("/export.json", h.handleExportJSON)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
