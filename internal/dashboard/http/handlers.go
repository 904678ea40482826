// Package dashboardhttp exposes the visitor dashboard over HTTP: a JSON view
// model, rendered chart SVGs, the filter and navigation actions and the
// export downloads.
package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/visitor-insights/internal/dashboard"
	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
	"github.com/odyssey-erp/visitor-insights/internal/dashboard/svg"
	"github.com/odyssey-erp/visitor-insights/internal/platform/httpx"
	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

const waitTimeout = 15 * time.Second

// ThemeSwitcher owns the chart theme.
type ThemeSwitcher interface {
	Theme() charts.Theme
	ToggleTheme() (charts.Theme, error)
}

// ChartSource serves the markup rendered into chart anchors.
type ChartSource interface {
	HasAnchor(anchor string) bool
	SVG(anchor string) (template.HTML, bool)
}

// Handler coordinates HTTP requests for the visitor dashboard.
type Handler struct {
	logger   *slog.Logger
	dash     *dashboard.Dashboard
	charts   ThemeSwitcher
	svgs     ChartSource
	exporter *dashboard.Exporter
	archive  dashboard.Downloader
}

// NewHandler constructs the dashboard HTTP handler. charts and svgs may be nil
// when the process renders no charts.
func NewHandler(logger *slog.Logger, dash *dashboard.Dashboard, charts ThemeSwitcher, svgs ChartSource, exporter *dashboard.Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, dash: dash, charts: charts, svgs: svgs, exporter: exporter}
}

// WithArchive keeps a copy of every export served, for example in a
// dashboard.DirDownloader. Archive failures are logged and do not fail the
// download.
func (h *Handler) WithArchive(dl dashboard.Downloader) {
	h.archive = dl
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, buildViewModel(h.dash.State(), h.theme()))
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	anchor := chi.URLParam(r, "anchor")
	if h.svgs == nil || !h.svgs.HasAnchor(anchor) {
		httpx.RespondError(w, fmt.Errorf("%w: chart %q", httpx.ErrNotFound, anchor))
		return
	}
	markup, ok := h.svgs.SVG(anchor)
	if !ok || markup == "" {
		placeholder, err := svg.Render(svg.DefaultWidth, svg.DefaultHeight, charts.Descriptor{})
		if err != nil {
			h.handleServerError(w, "render placeholder", err)
			return
		}
		markup = placeholder
	}
	w.Header().Set("Content-Type", mime.TypeByExtension(".svg"))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(markup)); err != nil {
		h.logError("stream chart", err)
	}
}

type projectRequest struct {
	ProjectName string `json:"projectName"`
}

func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.dash.SetProject(req.ProjectName)
	h.respondCascade(w, r, c, err)
}

type periodRequest struct {
	Period string `json:"period"`
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := visitors.ParsePeriod(req.Period)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	c, err := h.dash.SetPeriod(period)
	h.respondCascade(w, r, c, err)
}

type locationRequest struct {
	Location string `json:"location"`
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondCascade(w, r, h.dash.SetLocation(req.Location), nil)
}

type deviceRequest struct {
	Device string `json:"device"`
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondCascade(w, r, h.dash.SetDevice(req.Device), nil)
}

type daysRequest struct {
	Days int `json:"days"`
}

func (h *Handler) handleDays(w http.ResponseWriter, r *http.Request) {
	var req daysRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.dash.SetDays(req.Days)
	h.respondCascade(w, r, c, err)
}

func (h *Handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	var patch dashboard.FilterPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.dash.UpdateFilters(patch)
	h.respondCascade(w, r, c, err)
}

func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request) {
	c, err := h.dash.SetDateRange(dashboard.DateRange(chi.URLParam(r, "range")))
	h.respondCascade(w, r, c, err)
}

func (h *Handler) handleNextPage(w http.ResponseWriter, r *http.Request) {
	h.respondCascade(w, r, h.dash.NextPage(), nil)
}

func (h *Handler) handlePreviousPage(w http.ResponseWriter, r *http.Request) {
	h.respondCascade(w, r, h.dash.PreviousPage(), nil)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.respondCascade(w, r, h.dash.Refresh(), nil)
}

func (h *Handler) handleActiveRefresh(w http.ResponseWriter, r *http.Request) {
	count, err := h.dash.RefreshActiveVisitors(r.Context())
	if err != nil {
		h.respondDashboardError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"activeVisitors": count})
}

func (h *Handler) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	if h.charts == nil {
		httpx.RespondError(w, fmt.Errorf("%w: charts disabled", httpx.ErrUnavailable))
		return
	}
	theme, err := h.charts.ToggleTheme()
	if err != nil {
		// The theme flipped; a chart that failed to rebuild stays absent.
		h.logger.Warn("theme toggle rebuild failed", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]charts.Theme{"theme": theme})
}

func (h *Handler) handleDismissError(w http.ResponseWriter, r *http.Request) {
	kind, err := dashboard.ParseFetchKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
		return
	}
	h.dash.DismissError(kind)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, visitors.ExportCSV)
}

func (h *Handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, visitors.ExportJSON)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format visitors.ExportFormat) {
	if h.exporter == nil {
		httpx.RespondError(w, fmt.Errorf("%w: export disabled", httpx.ErrUnavailable))
		return
	}
	dl := &responseDownloader{w: w, archive: h.archive, logger: h.logger}
	err := h.exporter.Export(r.Context(), format, dl)
	if err == nil {
		return
	}
	if dl.started {
		h.logError("stream export", err)
		return
	}
	h.logError("export", err)
	httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUpstream, dashboard.ExportFailureMessage(format)))
}

// responseDownloader delivers an export artifact as an attachment.
type responseDownloader struct {
	w       http.ResponseWriter
	archive dashboard.Downloader
	logger  *slog.Logger
	started bool
}

func (d *responseDownloader) Download(ctx context.Context, url string, a dashboard.Artifact) error {
	if d.archive != nil {
		if err := d.archive.Download(ctx, url, a); err != nil {
			d.logger.Warn("archive export", slog.String("file", a.Filename), slog.Any("error", err))
		}
	}
	d.started = true
	d.w.Header().Set("Content-Type", a.MediaType)
	d.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	d.w.Header().Set("Content-Length", strconv.Itoa(len(a.Body)))
	d.w.WriteHeader(http.StatusOK)
	_, err := d.w.Write(a.Body)
	return err
}

// respondCascade acknowledges an action. With ?wait=true the response is
// delayed until the cascade settles and carries the fresh view model.
func (h *Handler) respondCascade(w http.ResponseWriter, r *http.Request, c *dashboard.Cascade, err error) {
	if err != nil {
		h.respondDashboardError(w, err)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := waitCascade(r.Context(), c); err != nil {
			h.logger.Debug("cascade wait ended early", slog.String("cascade", c.ID()), slog.Any("error", err))
		}
		httpx.JSON(w, http.StatusOK, buildViewModel(h.dash.State(), h.theme()))
		return
	}
	httpx.JSON(w, http.StatusAccepted, CascadeView{Cascade: c.ID(), Kinds: c.Kinds()})
}

func waitCascade(ctx context.Context, c *dashboard.Cascade) error {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) respondDashboardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrInvalidFilters), errors.Is(err, dashboard.ErrUnknownDateRange):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, dashboard.ErrClosed):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
	default:
		h.logError("dashboard action", err)
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
	}
}

func (h *Handler) theme() charts.Theme {
	if h.charts == nil {
		return charts.ThemeLight
	}
	return h.charts.Theme()
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
}
