package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// commit applies a successful fetch to the dashboard while d.mu is held and
// returns any follow-up fetches.
type commit func(d *Dashboard) []job

// job is one fetch of a kind. Arguments are captured when the job is built.
type job struct {
	kind FetchKind
	run  func(ctx context.Context) (commit, error)
	// failure overrides the kind's failure message when set.
	failure string
}

func (j job) failureMessage() string {
	if j.failure != "" {
		return j.failure
	}
	return j.kind.FailureMessage()
}

type slot struct {
	status     Status
	err        string
	generation uint64
	updatedAt  time.Time
}

type ticket struct {
	job        job
	generation uint64
}

// Cascade tracks the fetches issued by one action, including follow-ups.
type Cascade struct {
	id    uuid.UUID
	kinds []FetchKind
	g     errgroup.Group
}

func newCascade() *Cascade {
	return &Cascade{id: uuid.New()}
}

// ID identifies the cascade in logs.
func (c *Cascade) ID() string { return c.id.String() }

// Kinds lists the fetch kinds the action issued directly.
func (c *Cascade) Kinds() []FetchKind {
	return append([]FetchKind(nil), c.kinds...)
}

// Wait blocks until every fetch of the cascade has completed and returns the
// first fetch error. Failures are also recorded per kind on the dashboard.
func (c *Cascade) Wait() error { return c.g.Wait() }

// issueLocked marks each job's slot loading under a fresh generation.
func (d *Dashboard) issueLocked(jobs []job) []ticket {
	tickets := make([]ticket, 0, len(jobs))
	for _, j := range jobs {
		s := d.slots[j.kind]
		s.generation++
		s.status = StatusLoading
		s.err = ""
		tickets = append(tickets, ticket{job: j, generation: s.generation})
	}
	return tickets
}

func (d *Dashboard) run(c *Cascade, t ticket) {
	c.g.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), d.fetchTimeout)
		defer cancel()

		apply, err := d.execute(ctx, t.job)
		for _, next := range d.complete(t, apply, err) {
			d.run(c, next)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", t.job.kind, err)
		}
		return nil
	})
}

func (d *Dashboard) execute(ctx context.Context, j job) (commit, error) {
	start := d.now()
	apply, err := j.run(ctx)
	if d.observer != nil {
		d.observer.ObserveFetch(string(j.kind), err, d.now().Sub(start))
	}
	return apply, err
}

// complete records the outcome of a ticket and returns follow-up tickets.
// Completions after Close or from a superseded generation are dropped.
func (d *Dashboard) complete(t ticket, apply commit, err error) []ticket {
	d.mu.Lock()
	defer d.mu.Unlock()

	kind := t.job.kind
	if d.closed {
		d.logger.Debug("fetch completed after close", slog.String("kind", string(kind)))
		return nil
	}
	s := d.slots[kind]
	if s.generation != t.generation {
		d.logger.Debug("stale fetch discarded",
			slog.String("kind", string(kind)),
			slog.Uint64("generation", t.generation),
			slog.Uint64("current", s.generation))
		return nil
	}
	s.updatedAt = d.now()
	if err != nil {
		s.status = StatusFailed
		s.err = t.job.failureMessage()
		d.logger.Error(s.err, slog.String("kind", string(kind)), slog.Any("error", err))
		return nil
	}
	s.status = StatusReady
	if apply == nil {
		return nil
	}
	return d.issueLocked(apply(d))
}

// Begin marks kind as loading and returns the function that records its
// outcome. It backs fetches driven outside a cascade, such as exports. An
// empty failure keeps the kind's default message.
func (d *Dashboard) Begin(kind FetchKind, failure string) func(error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return func(error) {}
	}
	tickets := d.issueLocked([]job{{kind: kind, failure: failure}})
	d.mu.Unlock()
	start := d.now()
	return func(err error) {
		if d.observer != nil {
			d.observer.ObserveFetch(string(kind), err, d.now().Sub(start))
		}
		d.complete(tickets[0], nil, err)
	}
}

// DismissError clears the failure message of a kind.
func (d *Dashboard) DismissError(kind FetchKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.slots[kind]; ok {
		s.err = ""
		if s.status == StatusFailed {
			s.status = StatusIdle
		}
	}
}

// Loading is the coarse in-flight indicator.
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.slots {
		if s.status == StatusLoading {
			return true
		}
	}
	return false
}
