package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "@every 10m"
	DefaultDraftTTL = time.Hour

	sweepTimeout = time.Minute
)

// DraftSweeper fails invoice drafts that never left the draft state.
type DraftSweeper interface {
	FailStaleDraftInvoices(ctx context.Context, ttl time.Duration) (int64, error)
}

type Config struct {
	// Schedule is a cron spec or descriptor such as "@every 10m".
	Schedule string
	DraftTTL time.Duration
}

// Manager runs the background maintenance jobs.
type Manager struct {
	sweeper DraftSweeper
	cfg     Config

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewManager(sweeper DraftSweeper, cfg Config) *Manager {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = DefaultDraftTTL
	}
	return &Manager{sweeper: sweeper, cfg: cfg}
}

// Start registers the jobs and starts the cron runner. Calling Start on a
// running manager is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(m.cfg.Schedule, m.sweep); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", m.cfg.Schedule, err)
	}

	m.cron = c
	m.running = true
	c.Start()
	log.Infof("[Scheduler] started draft invoice sweeper (%s, ttl %s)", m.cfg.Schedule, m.cfg.DraftTTL)
	return nil
}

// Stop waits for a running sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	<-m.cron.Stop().Done()
	m.running = false
	log.Info("[Scheduler] stopped")
}

// SweepOnce runs the draft sweep immediately.
func (m *Manager) SweepOnce(ctx context.Context) (int64, error) {
	return m.sweeper.FailStaleDraftInvoices(ctx, m.cfg.DraftTTL)
}

func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := m.SweepOnce(ctx); err != nil {
		log.Errorf("[Sweeper] draft invoice sweep failed: %v", err)
	}
}
