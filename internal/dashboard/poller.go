package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// ActiveSource performs one active visitor fetch.
type ActiveSource interface {
	RefreshActiveVisitors(ctx context.Context) (int, error)
}

// Poller refreshes the active visitor count on a fixed interval, outside any
// filter cascade.
type Poller struct {
	source   ActiveSource
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller builds a Poller. A non-positive interval means DefaultPollInterval.
func NewPoller(source ActiveSource, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{source: source, interval: interval, logger: logger}
}

// Start fetches immediately and then on every tick until Stop or ctx ends.
// Calling Start while running is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop cancels the timer and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if _, err := p.source.RefreshActiveVisitors(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("active visitor poll failed", slog.Any("error", err))
	}
}

// CountActiveVisitors extracts the active visitor count from a payload that
// is either a bare array or an object with an activeVisitors array. Any other
// shape counts as zero.
func CountActiveVisitors(raw json.RawMessage, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && list != nil {
		return len(list)
	}
	var wrapped struct {
		ActiveVisitors []json.RawMessage `json:"activeVisitors"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.ActiveVisitors != nil {
		return len(wrapped.ActiveVisitors)
	}
	logger.Warn("unexpected active visitors payload", slog.String("payload", truncate(string(raw), 200)))
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
