// Package schedule triggers the daily catch-up batch on a cron spec.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "briefbot/pkg/logx"
)

// DefaultSpec fires once a day, mid-morning, after the newsletter usually
// lands.
const DefaultSpec = "0 9 * * *"

type Config struct {
	Cron     string // five-field spec or descriptor like "@daily"
	Timezone string // IANA name, default UTC
}

// Service runs one job on a cron schedule. A tick that arrives while the
// previous batch is still running is skipped, not queued; the running batch
// already covers every pending date.
type Service struct {
	spec string
	loc  *time.Location
	job  func(ctx context.Context)
	log  logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	running atomic.Bool
}

var specParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func New(cfg Config, job func(ctx context.Context), log logx.Logger) (*Service, error) {
	spec := strings.TrimSpace(cfg.Cron)
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := specParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}

	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", tz, err)
		}
		loc = l
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{spec: spec, loc: loc, job: job, log: log}, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(cron.WithParser(specParser), cron.WithLocation(s.loc))
	_, err := c.AddJob(s.spec, cron.FuncJob(func() { s.tick(ctx) }))
	if err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	c.Start()
	s.c = c
	s.log.Info("schedule started",
		logx.String("cron", s.spec), logx.String("tz", s.loc.String()))
	return nil
}

func (s *Service) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("tick skipped; previous batch still running")
		return
	}
	defer s.running.Store(false)
	s.job(ctx)
}

// Stop halts triggering and waits for a running job, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("schedule stopped")
}
