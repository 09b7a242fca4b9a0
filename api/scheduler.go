/*
scheduler.go - Automated schedule generation scheduler

PURPOSE:
  Periodically generates the upcoming month's schedule for every
  installation once the current month enters its final days, so the
  published schedule never runs out.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Generates the next month when today is within LeadDays of month end
  - Re-runs are harmless: generation merges and never overwrites
    progressed days

CONFIGURATION:
  - CheckInterval: How often to check (default: 6 hours)
  - LeadDays:      Days before month end to generate ahead (default: 5)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewGenerationScheduler(store, handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateSchedule endpoint (manual generation)
  - rota/generator.go: Generator semantics
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vigil/shift-engine/rota"
)

// GenerationScheduler handles automated ahead-of-month generation.
type GenerationScheduler struct {
	Store         Store
	Handler       *Handler
	Logger        *zap.Logger
	CheckInterval time.Duration
	LeadDays      int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewGenerationScheduler creates a new scheduler.
func NewGenerationScheduler(store Store, handler *Handler, logger *zap.Logger) *GenerationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationScheduler{
		Store:         store,
		Handler:       handler,
		Logger:        logger,
		CheckInterval: 6 * time.Hour,
		LeadDays:      5,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (gs *GenerationScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		gs.Logger.Info("scheduler disabled, not starting")
		return
	}

	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.wg.Add(1)

	go gs.run()

	gs.Logger.Info("scheduler started",
		zap.Duration("check_interval", gs.CheckInterval),
		zap.Int("lead_days", gs.LeadDays))
}

// Stop stops the scheduler.
func (gs *GenerationScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		close(gs.stop)
		gs.wg.Wait()
		gs.Logger.Info("scheduler stopped")
	}
}

func (gs *GenerationScheduler) run() {
	defer gs.wg.Done()

	// Run immediately on start
	gs.checkAndGenerate()

	for {
		select {
		case <-gs.ticker.C:
			gs.checkAndGenerate()
		case <-gs.stop:
			return
		}
	}
}

func (gs *GenerationScheduler) checkAndGenerate() {
	ctx := context.Background()
	today := rota.Today()

	daysLeft := rota.DaysInMonth(today.Year, today.Month) - today.Day
	if daysLeft >= gs.LeadDays {
		return
	}

	next := rota.NewDate(today.Year, today.Month, 1).AddMonths(1)

	installations, err := gs.Store.ListInstallations(ctx)
	if err != nil {
		gs.Logger.Error("scheduler failed to list installations", zap.Error(err))
		return
	}

	for _, in := range installations {
		result, err := gs.Handler.Generator.GenerateMonth(ctx, in.ID, next.Year, next.Month)
		if err != nil {
			gs.Logger.Error("scheduler generation failed",
				zap.String("installation", string(in.ID)), zap.Error(err))
			continue
		}
		if len(result.Generated) > 0 || len(result.Failed) > 0 {
			gs.Logger.Info("scheduler generated month",
				zap.String("installation", string(in.ID)),
				zap.Int("year", next.Year),
				zap.Int("month", int(next.Month)),
				zap.Int("generated", len(result.Generated)),
				zap.Int("skipped", len(result.Skipped)),
				zap.Int("failed", len(result.Failed)))
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (gs *GenerationScheduler) RunNow() {
	gs.checkAndGenerate()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (gs *GenerationScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(gs.CheckInterval)
}
