package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic journal report and any housekeeping jobs
// registered with AddJob.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

// New creates a scheduler firing on spec (standard five-field cron, UTC).
func New(spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// AddJob registers f under a cron spec. Jobs run until Stop; a failing job
// is logged and retried on its next tick.
func (s *Scheduler) AddJob(name, spec string, f func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := f(s.ctx); err != nil {
			log.Printf("❌ %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() error {
	if s.reportFunc == nil || s.spec == "" {
		log.Println("⚠️ Report function or schedule not set, scheduler will not generate reports")
	} else {
		err := s.AddJob("turn report", s.spec, func(ctx context.Context) error {
			log.Printf("🕘 Triggered turn report (%s UTC)", s.spec)
			return s.reportFunc(ctx)
		})
		if err != nil {
			return err
		}
		log.Printf("📅 Turn reports on %q UTC", s.spec)
	}

	if len(s.cron.Entries()) == 0 {
		return nil
	}
	s.cron.Start()
	log.Printf("📅 Scheduler started with %d jobs", len(s.cron.Entries()))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
