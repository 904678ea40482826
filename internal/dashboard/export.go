package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// Artifact is a downloadable export.
type Artifact struct {
	Filename  string
	MediaType string
	Body      []byte
}

// BlobStore hands out short lived object URLs for artifacts.
type BlobStore interface {
	Create(a Artifact) (string, error)
	Revoke(url string) error
}

// Downloader delivers an artifact referenced by an object URL.
type Downloader interface {
	Download(ctx context.Context, url string, a Artifact) error
}

// Tracker records the outcome of a fetch kind.
type Tracker interface {
	Begin(kind FetchKind, failure string) func(error)
}

// Exporter serialises the visitor dataset into a downloadable artifact.
type Exporter struct {
	client  visitors.Client
	blobs   BlobStore
	tracker Tracker
	now     func() time.Time
	loc     *time.Location
	logger  *slog.Logger
}

// ExporterOption customises an Exporter.
type ExporterOption func(*Exporter)

// WithExportTracker reports export outcomes into the dashboard slots.
func WithExportTracker(t Tracker) ExporterOption {
	return func(e *Exporter) { e.tracker = t }
}

// WithExportClock sets the clock and timezone used for filenames.
func WithExportClock(now func() time.Time, loc *time.Location) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithExportLogger sets the logger.
func WithExportLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExporter builds an Exporter. A nil blob store uses MemoryBlobs.
func NewExporter(client visitors.Client, blobs BlobStore, opts ...ExporterOption) *Exporter {
	if blobs == nil {
		blobs = NewMemoryBlobs()
	}
	e := &Exporter{
		client: client,
		blobs:  blobs,
		now:    time.Now,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportFilename returns visitor-data-YYYY-MM-DD.<format> for the local day.
func ExportFilename(format visitors.ExportFormat, now time.Time, loc *time.Location) string {
	return fmt.Sprintf("visitor-data-%s.%s", LocalDate(now, loc), format)
}

// Export fetches the dataset in format and hands it to dl. The object URL is
// revoked once dl returns, whether or not it succeeded.
func (e *Exporter) Export(ctx context.Context, format visitors.ExportFormat, dl Downloader) (err error) {
	finish := func(error) {}
	if e.tracker != nil {
		finish = e.tracker.Begin(KindExport, ExportFailureMessage(format))
	}
	defer func() { finish(err) }()

	artifact, err := e.Build(ctx, format)
	if err != nil {
		return err
	}
	url, err := e.blobs.Create(artifact)
	if err != nil {
		return fmt.Errorf("export: create object url: %w", err)
	}
	defer func() {
		if rerr := e.blobs.Revoke(url); rerr != nil {
			e.logger.Warn("export object url revoke failed", slog.String("url", url), slog.Any("error", rerr))
		}
	}()
	if err := dl.Download(ctx, url, artifact); err != nil {
		return fmt.Errorf("export: download: %w", err)
	}
	e.logger.Info("export delivered", slog.String("file", artifact.Filename), slog.Int("bytes", len(artifact.Body)))
	return nil
}

// Build fetches and encodes the artifact without delivering it.
func (e *Exporter) Build(ctx context.Context, format visitors.ExportFormat) (Artifact, error) {
	if _, err := visitors.ParseExportFormat(string(format)); err != nil {
		return Artifact{}, err
	}
	body, err := e.client.ExportVisitors(ctx, format)
	if err != nil {
		return Artifact{}, fmt.Errorf("export: fetch: %w", err)
	}
	artifact := Artifact{Filename: ExportFilename(format, e.now(), e.loc)}
	switch format {
	case visitors.ExportCSV:
		artifact.MediaType = "text/csv"
		artifact.Body = body
	case visitors.ExportJSON:
		var out bytes.Buffer
		if err := json.Indent(&out, bytes.TrimSpace(body), "", "  "); err != nil {
			return Artifact{}, fmt.Errorf("export: decode json: %w", err)
		}
		artifact.MediaType = "application/json"
		artifact.Body = out.Bytes()
	}
	return artifact, nil
}

// ErrUnknownURL is returned for object URLs that were never created or are
// already revoked.
var ErrUnknownURL = errors.New("export: unknown object url")

// MemoryBlobs keeps artifacts in memory under blob:<uuid> URLs.
type MemoryBlobs struct {
	mu    sync.Mutex
	blobs map[string]Artifact
}

// NewMemoryBlobs creates an empty store.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string]Artifact)}
}

// Create stores the artifact and returns its URL.
func (m *MemoryBlobs) Create(a Artifact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "blob:" + uuid.NewString()
	m.blobs[url] = a
	return url, nil
}

// Open returns the artifact behind a live URL.
func (m *MemoryBlobs) Open(url string) (Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.blobs[url]
	return a, ok
}

// Revoke releases a URL.
func (m *MemoryBlobs) Revoke(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[url]; !ok {
		return ErrUnknownURL
	}
	delete(m.blobs, url)
	return nil
}

// Len reports how many URLs are live.
func (m *MemoryBlobs) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// DirDownloader writes artifacts into a directory.
type DirDownloader struct {
	Dir string
}

// Download writes the artifact under its filename.
func (d DirDownloader) Download(ctx context.Context, url string, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(a.Filename, `/\`) {
		return fmt.Errorf("export: invalid filename %q", a.Filename)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.Dir, a.Filename), a.Body, 0o644)
}
