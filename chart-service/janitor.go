package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Janitor evicts stored charts older than ttl, then the oldest ones beyond
// maxFiles. A zero ttl or maxFiles disables that rule.
type Janitor struct {
	store    ChartStore
	ttl      time.Duration
	maxFiles int
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewJanitor(store ChartStore, cfg Config, log *slog.Logger) *Janitor {
	return &Janitor{
		store:    store,
		ttl:      cfg.RetentionTTL,
		maxFiles: cfg.RetentionMaxFiles,
		interval: cfg.SweepInterval,
		log:      log,
		now:      time.Now,
	}
}

// Sweep runs one eviction pass and reports how many charts it removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	charts, err := j.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list charts: %w", err)
	}

	var expired []StoredChart
	kept := charts
	if j.ttl > 0 {
		cutoff := j.now().Add(-j.ttl)
		i := 0
		for i < len(charts) && charts[i].CreatedAt.Before(cutoff) {
			i++
		}
		expired, kept = charts[:i], charts[i:]
	}
	if j.maxFiles > 0 && len(kept) > j.maxFiles {
		extra := len(kept) - j.maxFiles
		expired = append(expired[:len(expired):len(expired)], kept[:extra]...)
	}

	removed := 0
	var errs []error
	for _, chart := range expired {
		if err := j.store.Delete(ctx, chart.Name); err != nil && !errors.Is(err, ErrChartNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", chart.Name, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.Sweep(ctx)
			if err != nil {
				j.log.Error("chart sweep failed", "removed", removed, "error", err)
				continue
			}
			if removed > 0 {
				j.log.Info("chart sweep", "removed", removed)
			}
		}
	}
}
