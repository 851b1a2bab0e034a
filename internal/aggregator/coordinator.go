// Package aggregator runs aggregation cycles over every configured feed and
// governs when cycles are triggered.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
)

// ErrNoFeeds is returned by New when there is nothing to aggregate.
var ErrNoFeeds = errors.New("no feeds configured")

// Fetcher retrieves one feed's raw payload in a single attempt.
type Fetcher interface {
	Fetch(ctx context.Context, desc domain.FeedDescriptor, locale domain.Locale) (domain.RawPayload, error)
}

// Parser decodes a raw payload into typed records.
type Parser interface {
	Parse(desc domain.FeedDescriptor, payload []byte) ([]domain.Record, error)
}

// Enricher post-processes a feed's records after parsing. It must not fail
// the feed: records it cannot improve are returned unchanged.
type Enricher interface {
	Enrich(ctx context.Context, records []domain.Record) []domain.Record
}

// Publisher receives every snapshot after it becomes current.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error
}

// Options tunes a Coordinator. Zero values fall back to the defaults below.
type Options struct {
	FeedTimeout     time.Duration
	Retries         int
	RetryBackoff    time.Duration
	MinInterval     time.Duration
	SettleDelay     time.Duration
	RefreshInterval time.Duration
	Locale          domain.Locale

	Clock     clockwork.Clock
	Enricher  Enricher
	Publisher Publisher
}

func (o Options) withDefaults() Options {
	if o.FeedTimeout <= 0 {
		o.FeedTimeout = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 250 * time.Millisecond
	}
	if o.MinInterval <= 0 {
		o.MinInterval = 30 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = time.Second
	}
	if o.Locale == "" {
		o.Locale = domain.LocalePortuguese
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Coordinator fans out one fetch+parse unit per feed, fans the results in
// into a Snapshot and publishes it atomically.
type Coordinator struct {
	feeds   []domain.FeedDescriptor
	fetcher Fetcher
	parser  Parser
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	clock   clockwork.Clock

	snapshot atomic.Pointer[domain.Snapshot]
	cycles   singleflight.Group

	// Reload governor state.
	mu           sync.Mutex
	locale       domain.Locale
	lastReloadAt time.Time
	pending      clockwork.Timer
	settleGen    uint64
	closed       bool
	inFlight     atomic.Bool
	background   sync.WaitGroup
}

// New creates a Coordinator over the given feed table. Every descriptor is
// validated; an empty table is a configuration error.
func New(feeds []domain.FeedDescriptor, f Fetcher, p Parser, logger *slog.Logger, metrics *observability.Metrics, opts Options) (*Coordinator, error) {
	if len(feeds) == 0 {
		return nil, ErrNoFeeds
	}
	seen := make(map[domain.FeedID]bool, len(feeds))
	for _, d := range feeds {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate feed id %q", d.ID)
		}
		seen[d.ID] = true
	}
	opts = opts.withDefaults()

	table := make([]domain.FeedDescriptor, len(feeds))
	copy(table, feeds)

	return &Coordinator{
		feeds:   table,
		fetcher: f,
		parser:  p,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		clock:   opts.Clock,
		locale:  opts.Locale,
	}, nil
}

// Feeds returns a copy of the feed table.
func (c *Coordinator) Feeds() []domain.FeedDescriptor {
	out := make([]domain.FeedDescriptor, len(c.feeds))
	copy(out, c.feeds)
	return out
}

// Snapshot returns the current snapshot, or nil before the first cycle completed.
func (c *Coordinator) Snapshot() *domain.Snapshot {
	return c.snapshot.Load()
}

// CheckReadiness returns nil once at least one snapshot has been published.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if c.snapshot.Load() == nil {
		return errors.New("no snapshot published yet")
	}
	return nil
}

// RunCycle runs one aggregation cycle and returns the snapshot it published.
// Concurrent callers share the cycle already in flight. Feed failures are
// recorded on the snapshot and never abort the cycle.
func (c *Coordinator) RunCycle(ctx context.Context) *domain.Snapshot {
	v, _, _ := c.cycles.Do("cycle", func() (any, error) {
		return c.runCycle(ctx), nil
	})
	return v.(*domain.Snapshot)
}

func (c *Coordinator) runCycle(ctx context.Context) *domain.Snapshot {
	start := time.Now()
	locale := c.Locale()

	// Each unit writes only its own slot; slots are read after Wait.
	results := make([]domain.FeedResult, len(c.feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range c.feeds {
		g.Go(func() error {
			results[i] = c.collect(gctx, desc, locale)
			return nil
		})
	}
	_ = g.Wait()

	prevStage := 0
	if prev := c.snapshot.Load(); prev != nil {
		prevStage = prev.Stage()
	}
	snap := domain.NewSnapshot(c.clock.Now(), results, prevStage)
	c.snapshot.Store(snap)

	c.mu.Lock()
	c.lastReloadAt = c.clock.Now()
	c.mu.Unlock()

	c.metrics.CyclesTotal.Inc()
	c.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("cycle complete",
		"duration", time.Since(start),
		"feeds", len(results),
		"failed", len(snap.Failed()),
		"stage", snap.Stage(),
		"locale", locale,
	)

	if c.opts.Publisher != nil {
		if err := c.opts.Publisher.PublishSnapshot(ctx, snap); err != nil {
			c.logger.Warn("publish snapshot failed", "error", err)
		} else {
			c.metrics.SnapshotsPublished.Inc()
		}
	}
	return snap
}

// collect produces the FeedResult for one descriptor. It never returns an
// error; failures are classified onto the result.
func (c *Coordinator) collect(ctx context.Context, desc domain.FeedDescriptor, locale domain.Locale) domain.FeedResult {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FeedTimeout)
	defer cancel()

	result := domain.FeedResult{Feed: desc.ID, Shape: desc.Shape}

	began := time.Now()
	payload, err := c.fetch(ctx, desc, locale)
	c.metrics.FeedFetchDuration.WithLabelValues(string(desc.ID)).Observe(time.Since(began).Seconds())
	if err != nil {
		return c.fail(result, classify(ctx, desc.ID, err))
	}

	records, err := c.parser.Parse(desc, payload.Body)
	if err != nil {
		return c.fail(result, classify(ctx, desc.ID, err))
	}
	if c.opts.Enricher != nil {
		records = c.opts.Enricher.Enrich(ctx, records)
	}

	result.Records = records
	c.metrics.FeedRecords.WithLabelValues(string(desc.ID)).Set(float64(len(records)))
	return result
}

func (c *Coordinator) fail(result domain.FeedResult, err error) domain.FeedResult {
	result.Err = err
	kind := domain.KindOf(err)
	c.metrics.FeedErrors.WithLabelValues(string(result.Feed), kind.String()).Inc()
	c.metrics.FeedRecords.WithLabelValues(string(result.Feed)).Set(0)
	c.logger.Warn("feed failed", "feed", result.Feed, "kind", kind.String(), "error", err)
	return result
}

// fetch performs the fetch, retrying transient failures when configured.
// Retries share the feed's deadline.
func (c *Coordinator) fetch(ctx context.Context, desc domain.FeedDescriptor, locale domain.Locale) (domain.RawPayload, error) {
	if c.opts.Retries == 0 {
		return c.fetcher.Fetch(ctx, desc, locale)
	}

	policy := retrypolicy.NewBuilder[domain.RawPayload]().
		HandleIf(func(_ domain.RawPayload, err error) bool {
			return transient(err)
		}).
		WithBackoff(c.opts.RetryBackoff, 8*c.opts.RetryBackoff).
		WithMaxRetries(c.opts.Retries).
		Build()

	attempts := 0
	payload, err := failsafe.With(policy).WithContext(ctx).Get(func() (domain.RawPayload, error) {
		attempts++
		if attempts > 1 {
			c.metrics.FeedRetries.WithLabelValues(string(desc.ID)).Inc()
		}
		return c.fetcher.Fetch(ctx, desc, locale)
	})
	return payload, err
}

// transient reports whether a failed fetch is worth another attempt.
func transient(err error) bool {
	var fe *domain.FeedError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case domain.KindRequestFailed:
		return true
	case domain.KindInvalidStatus:
		return fe.Status >= http.StatusInternalServerError || fe.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// classify turns any error from a unit into a *domain.FeedError for feed. An
// expired unit deadline always wins.
func classify(ctx context.Context, feed domain.FeedID, err error) *domain.FeedError {
	var fe *domain.FeedError
	if errors.As(err, &fe) && (fe.Kind == domain.KindTimeout || ctx.Err() == nil) {
		return fe
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewFeedError(domain.KindTimeout, feed, err)
	}
	if fe != nil {
		return fe
	}
	return domain.NewFeedError(domain.KindRequestFailed, feed, err)
}
