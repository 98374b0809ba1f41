package corpus

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers  = 8
	defaultPollTick = 10 * time.Millisecond
)

// TierReport summarizes one LoadTiered call.
//
// BudgetExceeded is a normal, logged outcome, not an error: it means the
// essential tier was cut over at the budget with work still outstanding.
type TierReport struct {
	// Loaded lists essential keys cached before the cutover.
	Loaded []Key

	// Failed maps essential keys to their load errors. One bad key never
	// aborts the batch.
	Failed map[Key]error

	// Cancelled lists essential keys left unresolved by the cutover.
	// They load later on demand or through the near-term tier.
	Cancelled []Key

	// Skipped lists manifest entries that did not resolve to the content
	// grammar after profile interpolation.
	Skipped []string

	// BudgetExceeded reports whether the essential tier hit the budget.
	BudgetExceeded bool

	// Elapsed is the wall-clock duration of the essential phase.
	Elapsed time.Duration

	// NearTermScheduled is the number of keys handed to the background
	// near-term warm-up.
	NearTermScheduled int
}

// Orchestrator drives the two-tier cache warm-up over a Store.
//
// The essential tier runs on a bounded worker pool under a hard wall-clock
// budget; when the budget expires, outstanding work is cancelled and
// control returns to the caller within one poll tick. The near-term tier
// runs in the background with no deadline and is cancelled by Close or by
// a superseding LoadTiered call. On-demand content is never prefetched.
type Orchestrator struct {
	store    *Store
	logger   *zap.Logger
	workers  int
	pollTick time.Duration

	mu       sync.Mutex // guards background task handover
	bgCancel context.CancelFunc
	bgDone   chan struct{}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers sets the essential-tier worker pool size. Defaults to 8.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.workers = n
		}
	}
}

// WithPollTick sets the budget polling interval. Defaults to 10ms.
func WithPollTick(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollTick = d
		}
	}
}

// WithOrchestratorLogger sets the logger. Defaults to a no-op logger.
func WithOrchestratorLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over the store.
func NewOrchestrator(store *Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		logger:   zap.NewNop(),
		workers:  defaultWorkers,
		pollTick: defaultPollTick,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(o)
	}
	return o
}

// LoadTiered warms the cache from the manifest.
//
// The essential tier (manifest entries plus profile-interpolated paths) is
// loaded concurrently under budget; LoadTiered returns at or before
// budget plus one poll tick, even if not all essential content loaded.
// The near-term tier is scheduled concurrently in the background and never
// blocks this call. Completed loads keep their cached results across a
// cutover; cancelled ones simply never populate the cache.
func (o *Orchestrator) LoadTiered(ctx context.Context, manifest Manifest, profile Profile, budget time.Duration) TierReport {
	start := time.Now()

	essential, skippedEssential := expandTier(manifest.Essential, profile)
	nearTerm, skippedNear := expandTier(manifest.NearTerm, profile)

	report := TierReport{
		Failed:            make(map[Key]error),
		Skipped:           append(skippedEssential, skippedNear...),
		NearTermScheduled: len(nearTerm),
	}
	for _, name := range report.Skipped {
		o.logger.Warn("manifest entry does not match content grammar", zap.String("entry", name))
	}

	// The near-term tier is not ordered relative to the essential phase;
	// schedule it up front so it supersedes any previous background task.
	o.startNearTerm(ctx, nearTerm)

	o.loadEssential(ctx, essential, start.Add(budget), &report)
	report.Elapsed = time.Since(start)

	if report.BudgetExceeded {
		o.logger.Info("essential tier cut over at budget",
			zap.Duration("budget", budget),
			zap.Int("loaded", len(report.Loaded)),
			zap.Int("cancelled", len(report.Cancelled)),
			zap.Int("failed", len(report.Failed)))
	}
	return report
}

type loadResult struct {
	key Key
	err error
}

// loadEssential fans the keys out over the worker pool and collects
// results until done or the deadline passes.
func (o *Orchestrator) loadEssential(ctx context.Context, keys []Key, deadline time.Time, report *TierReport) {
	if len(keys) == 0 {
		return
	}

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan loadResult, len(keys))
	g := &errgroup.Group{}
	g.SetLimit(o.workers)
	go func() {
		for _, key := range keys {
			key := key
			if loadCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				// No new reads once the budget has expired.
				if err := loadCtx.Err(); err != nil {
					results <- loadResult{key, err}
					return nil
				}
				_, err := o.store.Get(loadCtx, key)
				results <- loadResult{key, err}
				return nil
			})
		}
		g.Wait() //nolint:errcheck // workers never return errors
		close(results)
	}()

	ticker := time.NewTicker(o.pollTick)
	defer ticker.Stop()

	outcome := make(map[Key]error, len(keys))
collect:
	for len(outcome) < len(keys) {
		select {
		case r, ok := <-results:
			if !ok {
				break collect
			}
			outcome[r.key] = r.err
		case <-ticker.C:
			if time.Now().After(deadline) {
				cancel()
				report.BudgetExceeded = true
				break collect
			}
		case <-ctx.Done():
			cancel()
			break collect
		}
	}

	// Pick up results that were already delivered before the cutover,
	// without waiting on anything still in flight.
drain:
	for {
		select {
		case r, ok := <-results:
			if !ok {
				break drain
			}
			outcome[r.key] = r.err
		default:
			break drain
		}
	}

	for _, key := range keys {
		err, done := outcome[key]
		switch {
		case !done:
			report.Cancelled = append(report.Cancelled, key)
		case err == nil:
			report.Loaded = append(report.Loaded, key)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			report.Cancelled = append(report.Cancelled, key)
		default:
			report.Failed[key] = err
			o.logger.Warn("essential key failed to load",
				zap.String("key", key.String()), zap.Error(err))
		}
	}
}

// startNearTerm hands the near-term keys to a single background worker,
// cancelling any warm-up from a previous LoadTiered call.
//
// The background context inherits values from ctx but not its
// cancellation: the near-term tier has no deadline of its own and outlives
// the LoadTiered call that scheduled it.
func (o *Orchestrator) startNearTerm(ctx context.Context, keys []Key) {
	o.mu.Lock()
	if o.bgCancel != nil {
		o.bgCancel()
	}
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	o.bgCancel = cancel
	o.bgDone = done
	o.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		o.store.Preload(bgCtx, keys)
	}()
}

// Close cancels the background near-term warm-up and waits for it to stop.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	cancel, done := o.bgCancel, o.bgDone
	o.bgCancel, o.bgDone = nil, nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
