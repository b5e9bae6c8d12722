package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
)

// Observer samples prices for time-weighted averages.
type Observer interface {
	Observe(ctx context.Context) error
}

// Scheduler runs the periodic ledger jobs: price observations and fee sweeps.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	observer Observer
	funds    fundsports.Service
	minter   FeeMinter
	logger   *slog.Logger
}

// NewScheduler creates a scheduler with seconds-resolution cron specs.
func NewScheduler(ctx context.Context, observer Observer, funds fundsports.Service, minter FeeMinter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:      ctx,
		observer: observer,
		funds:    funds,
		minter:   minter,
		logger:   logger,
	}
}

// Register adds the jobs. An empty spec leaves that job out.
func (s *Scheduler) Register(observeSpec, feeMintSpec string) error {
	if observeSpec != "" {
		if _, err := s.cron.AddFunc(observeSpec, s.observe); err != nil {
			return fmt.Errorf("register observe job: %w", err)
		}
	}
	if feeMintSpec != "" {
		if _, err := s.cron.AddFunc(feeMintSpec, s.sweep); err != nil {
			return fmt.Errorf("register fee mint job: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) observe() {
	if err := s.observer.Observe(s.ctx); err != nil {
		s.logger.Warn("price observation incomplete", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) sweep() {
	result, err := SweepManagerFees(s.ctx, s.funds, s.minter, s.logger)
	attrs := []slog.Attr{
		slog.Int("funds", result.Funds),
		slog.Int("minted", result.Minted),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	}
	if err != nil {
		s.logger.LogAttrs(s.ctx, slog.LevelWarn, "fee sweep finished with failures", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	s.logger.LogAttrs(s.ctx, slog.LevelInfo, "fee sweep finished", attrs...)
}
