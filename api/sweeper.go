/*
sweeper.go - Background pass over due scheduled transfers

PURPOSE:
  Periodically runs the due-item pass across all accounts, so scheduled
  transfers fire even for users who never log in. This is an opt-in
  supplement to the per-login trigger, which remains the default.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - One pass = RunDueForAccount for every account
  - Per-item failures are logged and never abort the pass

USAGE:
  sweeper := NewSweeper(store, schedules, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/meridian/bank-ledger/bank"
	"github.com/meridian/bank-ledger/ledger"
)

// Sweeper periodically executes due scheduled transfers for all accounts.
type Sweeper struct {
	Store     ledger.Store
	Schedules *bank.ScheduleService
	Interval  time.Duration
	Log       *log.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweeper(store ledger.Store, schedules *bank.ScheduleService, logger *log.Logger) *Sweeper {
	return &Sweeper{
		Store:     store,
		Schedules: schedules,
		Interval:  time.Hour,
		Log:       logger,
		stop:      make(chan struct{}),
	}
}

// Start begins the sweep loop. The first pass runs immediately.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()
	s.Log.Info("sweeper started", "interval", s.Interval)
}

// Stop halts the sweep loop and waits for an in-flight pass.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("sweeper stopped")
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	s.sweep()
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()
	today := ledger.DateKey(time.Now())

	accounts, err := s.Store.ListAccounts(ctx)
	if err != nil {
		s.Log.Error("sweep failed to list accounts", "err", err)
		return
	}

	ran, failed := 0, 0
	for _, a := range accounts {
		results, err := s.Schedules.RunDueForAccount(ctx, a.ID, today)
		if err != nil {
			s.Log.Error("sweep failed for account", "account", a.ID, "err", err)
			continue
		}
		for _, res := range results {
			if res.Err != nil {
				failed++
				s.Log.Warn("scheduled transfer failed", "schedule", res.ScheduleID, "err", res.Err)
				continue
			}
			ran++
		}
	}
	if ran > 0 || failed > 0 {
		s.Log.Info("sweep complete", "executed", ran, "failed", failed)
	}
}
