package dashboard

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRollover fires at civil midnight.
const DefaultRollover = "0 0 * * *"

// Scheduler moves every tracked snapshot to the new reference date when the
// civil day changes.
type Scheduler struct {
	cron     *cron.Cron
	builder  *Builder
	tracker  *Tracker
	spec     string
	timeout  time.Duration
	idleDrop time.Duration
}

// NewScheduler creates a scheduler running spec in loc. An empty spec uses DefaultRollover.
func NewScheduler(b *Builder, t *Tracker, spec string, loc *time.Location, timeout time.Duration) *Scheduler {
	if spec == "" {
		spec = DefaultRollover
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		builder:  b,
		tracker:  t,
		spec:     spec,
		timeout:  timeout,
		idleDrop: 48 * time.Hour,
	}
}

// Start registers the rollover job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.Rollover); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop. The returned context is done once a running rollover finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Rollover drops students idle for long and recomputes the rest for today.
func (s *Scheduler) Rollover() {
	if n := s.tracker.Prune(s.idleDrop); n > 0 {
		log.Printf("rollover: dropped %d idle students", n)
	}
	students := s.tracker.Students()
	refreshed := 0
	for _, id := range students {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if _, err := s.builder.RefreshCounters(ctx, id); err != nil {
			log.Printf("rollover: refresh %s: %v", id, err)
		} else {
			refreshed++
		}
		cancel()
	}
	log.Printf("rollover to %s: refreshed %d/%d students", s.builder.Today(), refreshed, len(students))
}
