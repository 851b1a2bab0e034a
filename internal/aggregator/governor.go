package aggregator

import (
	"context"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// Trigger names used for metrics and logs.
const (
	triggerFetch    = "fetch"
	triggerActive   = "active"
	triggerLanguage = "language"
	triggerRefresh  = "refresh"
)

// Locale returns the locale used for localized feeds.
func (c *Coordinator) Locale() domain.Locale {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

// FetchIfNeeded starts a background cycle unless one is already in flight.
// It reports whether a cycle was started.
func (c *Coordinator) FetchIfNeeded() bool {
	return c.fetchIfNeeded(triggerFetch)
}

func (c *Coordinator) fetchIfNeeded(trigger string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.mu.Unlock()
		c.metrics.Triggers.WithLabelValues(trigger, "skipped").Inc()
		c.logger.Debug("cycle already in flight", "trigger", trigger)
		return false
	}
	c.background.Add(1)
	c.mu.Unlock()

	c.metrics.Triggers.WithLabelValues(trigger, "started").Inc()
	go func() {
		defer c.background.Done()
		defer c.inFlight.Store(false)
		c.RunCycle(context.Background())
	}()
	return true
}

// OnBecameActive requests a reload when the consumer returns to the
// foreground. The call is ignored while a cycle is running or when the last
// completed cycle is younger than the minimum interval; otherwise the reload
// starts after the settle delay, replacing any reload still waiting to
// settle. The interval is checked again when the delay expires.
func (c *Coordinator) OnBecameActive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.throttledLocked() {
		return
	}

	c.stopPendingLocked()
	gen := c.settleGen
	c.pending = c.clock.AfterFunc(c.opts.SettleDelay, func() {
		c.mu.Lock()
		if gen != c.settleGen {
			// Replaced or cancelled after the timer had already fired.
			c.mu.Unlock()
			return
		}
		c.pending = nil
		if c.throttledLocked() {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.fetchIfNeeded(triggerActive)
	})
	c.metrics.Triggers.WithLabelValues(triggerActive, "scheduled").Inc()
}

// throttledLocked reports whether an active trigger must be dropped because a
// cycle is running or finished less than the minimum interval ago.
func (c *Coordinator) throttledLocked() bool {
	if c.inFlight.Load() {
		c.metrics.Triggers.WithLabelValues(triggerActive, "throttled").Inc()
		c.logger.Debug("reload throttled", "reason", "cycle in flight")
		return true
	}
	if !c.lastReloadAt.IsZero() && c.clock.Since(c.lastReloadAt) < c.opts.MinInterval {
		c.metrics.Triggers.WithLabelValues(triggerActive, "throttled").Inc()
		c.logger.Debug("reload throttled", "since_last", c.clock.Since(c.lastReloadAt))
		return true
	}
	return false
}

// OnBackground cancels a reload waiting to settle. A running cycle is not
// affected.
func (c *Coordinator) OnBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPendingLocked()
}

// OnLanguageChanged switches localized feeds to the locale best matching
// code and requests a reload.
func (c *Coordinator) OnLanguageChanged(code string) domain.Locale {
	locale := domain.MatchLocale(code)
	c.mu.Lock()
	changed := c.locale != locale
	c.locale = locale
	c.mu.Unlock()

	if changed {
		c.logger.Info("locale changed", "locale", locale, "requested", code)
	}
	c.fetchIfNeeded(triggerLanguage)
	return locale
}

// Start runs the periodic refresher until ctx is cancelled. A zero refresh
// interval disables it.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.opts.RefreshInterval <= 0 {
		c.logger.Info("periodic refresh disabled")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("periodic refresh started", "interval", c.opts.RefreshInterval)
	c.metrics.RefresherRunning.Set(1)
	defer c.metrics.RefresherRunning.Set(0)

	ticker := c.clock.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("periodic refresh stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			c.fetchIfNeeded(triggerRefresh)
		}
	}
}

// Close cancels any pending reload, rejects further triggers and waits for
// background cycles to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopPendingLocked()
	c.mu.Unlock()

	c.background.Wait()
}

func (c *Coordinator) stopPendingLocked() {
	c.settleGen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}
