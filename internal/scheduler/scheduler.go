package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic rollover check. The check itself is idempotent,
// so a daily tick is enough to catch the monthly boundary even after downtime.
type Scheduler struct {
	cron         *cron.Cron
	rolloverFunc func(currentPeriod string) error
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithLocation(time.UTC))}
}

// SetRolloverFunc sets the function invoked with the current "YYYY-MM" period.
func (s *Scheduler) SetRolloverFunc(f func(currentPeriod string) error) {
	s.rolloverFunc = f
}

func (s *Scheduler) Start() error {
	if s.rolloverFunc == nil {
		log.Println("rollover function not set, scheduler idle")
		return nil
	}

	// Daily at 00:10 UTC, shortly after any month boundary.
	_, err := s.cron.AddFunc("10 0 * * *", func() {
		period := time.Now().UTC().Format("2006-01")
		if err := s.rolloverFunc(period); err != nil {
			log.Printf("scheduled rollover check failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("scheduler started, rollover check daily at 00:10 UTC")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	log.Println("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
