package schedule

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/soter-security/soter/utils"
)

// DefaultInterval runs the scan twice a day.
const DefaultInterval = 12 * time.Hour

const target = "scan"

type option func(*Scheduler)

// WithStateDir keeps the time of the last successful run in
// <dir>/last_updated.json so a restarted daemon does not rescan too early.
func WithStateDir(dir string) option {
	return func(s *Scheduler) { s.stateFile = filepath.Join(dir, utils.LastUpdatedFile) }
}

func WithFs(fs afero.Fs) option {
	return func(s *Scheduler) { s.fs = utils.NewFs(fs) }
}

func withClock(now func() time.Time) option {
	return func(s *Scheduler) { s.now = now }
}

type Scheduler struct {
	interval  time.Duration
	job       func() error
	fs        utils.Fs
	stateFile string
	now       func() time.Time
}

func NewScheduler(interval time.Duration, job func() error, opts ...option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		interval: interval,
		job:      job,
		fs:       utils.NewFs(afero.NewOsFs()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the job when the last successful run is an interval old, then
// on every tick until ctx is cancelled. A job in progress is not interrupted.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("Scanning every %s", s.interval)
	if wait := s.wait(); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Print("Scheduler stopped")
			return
		case <-timer.C:
		}
	}
	s.run()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Print("Scheduler stopped")
			return
		case <-ticker.C:
			s.run()
		}
	}
}

// wait returns how long until the next run is due, zero when overdue.
func (s *Scheduler) wait() time.Duration {
	if s.stateFile == "" {
		return 0
	}
	last, err := s.fs.GetLastUpdatedDate(s.stateFile, target)
	if err != nil {
		log.Printf("Unable to read the last scan date: %s", err)
		return 0
	}
	next := last.Add(s.interval)
	if wait := next.Sub(s.now()); wait > 0 {
		log.Printf("Last scan at %s, next at %s", last.Format(time.RFC3339), next.Format(time.RFC3339))
		return wait
	}
	return 0
}

func (s *Scheduler) run() {
	if err := s.job(); err != nil {
		log.Printf("Scheduled scan error: %s", err)
		return
	}
	if s.stateFile == "" {
		return
	}
	if err := s.fs.SetLastUpdatedDate(s.stateFile, target, s.now()); err != nil {
		log.Printf("Unable to save the last scan date: %s", err)
	}
}
