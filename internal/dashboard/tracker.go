// Package dashboard assembles the student dashboard and owns the attendance
// counters derived for each student.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"studentdash/internal/attendance"
	"studentdash/internal/civil"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
)

// ErrSuperseded is returned to callers whose computation was replaced by a newer trigger.
var ErrSuperseded = errors.New("computation superseded by a newer trigger")

// Computer produces the counters for one trigger.
type Computer interface {
	Compute(ctx context.Context, in model.Internship, ref civil.Date, studentID string) (attendance.Counters, error)
}

// Trigger is the set of inputs the counters depend on. A change to any field
// makes the previous counters stale.
type Trigger struct {
	StudentID     string
	Internship    model.Internship
	ReferenceDate civil.Date
}

// Snapshot is a complete, immutable set of counters.
type Snapshot struct {
	StudentID     string     `json:"student_id"`
	InternshipID  string     `json:"internship_id"`
	ReferenceDate civil.Date `json:"reference_date"`
	attendance.Counters
	ComputedAt time.Time `json:"computed_at"`
}

type call struct {
	trigger Trigger
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	snap    Snapshot
	err     error
}

type slot struct {
	gen      uint64
	trigger  Trigger
	pending  *call
	latest   *Snapshot
	lastSeen time.Time
}

// Tracker runs at most one counter computation per student. Starting a computation
// for a different trigger cancels the one in flight, and only the computation of the
// latest trigger may publish its snapshot. Readers see either the previous or the
// next complete snapshot, never a mix.
type Tracker struct {
	calc Computer

	base   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	slots map[string]*slot
	now   func() time.Time
}

// NewTracker creates a tracker computing with calc.
func NewTracker(calc Computer) *Tracker {
	base, cancel := context.WithCancel(context.Background())
	return &Tracker{
		calc:   calc,
		base:   base,
		cancel: cancel,
		slots:  make(map[string]*slot),
		now:    time.Now,
	}
}

// Refresh computes counters for trig and waits for them. A caller asking for the
// trigger already in flight joins that computation. Cancelling ctx stops the wait but
// not the computation, which other callers may share.
func (t *Tracker) Refresh(ctx context.Context, trig Trigger) (Snapshot, error) {
	return t.wait(ctx, t.start(trig, false))
}

// Restart is Refresh for inputs known to have changed behind an unchanged trigger,
// such as a check-out. A computation in flight is superseded even when its trigger
// is equal, so the published snapshot never predates the call.
func (t *Tracker) Restart(ctx context.Context, trig Trigger) (Snapshot, error) {
	return t.wait(ctx, t.start(trig, true))
}

func (t *Tracker) wait(ctx context.Context, c *call) (Snapshot, error) {
	select {
	case <-c.done:
		return c.snap, c.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (t *Tracker) start(trig Trigger, force bool) *call {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[trig.StudentID]
	if !ok {
		s = &slot{}
		t.slots[trig.StudentID] = s
	}
	s.lastSeen = t.now()
	if s.pending != nil {
		if !force && s.pending.trigger == trig {
			return s.pending
		}
		s.pending.cancel()
		metrics.SupersededComputations.Inc()
	}

	s.gen++
	s.trigger = trig
	ctx, cancel := context.WithCancel(t.base)
	c := &call{trigger: trig, gen: s.gen, cancel: cancel, done: make(chan struct{})}
	s.pending = c
	go t.run(ctx, s, c)
	return c
}

func (t *Tracker) run(ctx context.Context, s *slot, c *call) {
	defer c.cancel()
	counters, err := t.calc.Compute(ctx, c.trigger.Internship, c.trigger.ReferenceDate, c.trigger.StudentID)

	t.mu.Lock()
	switch {
	case s.gen != c.gen:
		err = ErrSuperseded
	case err == nil:
		snap := &Snapshot{
			StudentID:     c.trigger.StudentID,
			InternshipID:  c.trigger.Internship.ID,
			ReferenceDate: c.trigger.ReferenceDate,
			Counters:      counters,
			ComputedAt:    t.now().UTC(),
		}
		s.latest = snap
		s.pending = nil
		c.snap = *snap
	default:
		s.pending = nil
	}
	c.err = err
	t.mu.Unlock()
	close(c.done)
}

// Latest returns the last complete snapshot for a student and whether a newer
// computation is still running.
func (t *Tracker) Latest(studentID string) (snap Snapshot, loading, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, found := t.slots[studentID]
	if !found {
		return Snapshot{}, false, false
	}
	loading = s.pending != nil
	if s.latest == nil {
		return Snapshot{}, loading, false
	}
	return *s.latest, loading, true
}

// Students lists the students with tracked counters.
func (t *Tracker) Students() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.slots))
	for id := range t.slots {
		out = append(out, id)
	}
	return out
}

// Forget drops a student's counters and cancels any computation in flight.
func (t *Tracker) Forget(studentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[studentID]; ok {
		if s.pending != nil {
			s.pending.cancel()
		}
		s.gen++
		delete(t.slots, studentID)
	}
}

// Prune forgets students not seen for longer than idle.
func (t *Tracker) Prune(idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-idle)
	n := 0
	for id, s := range t.slots {
		if s.pending == nil && s.lastSeen.Before(cutoff) {
			delete(t.slots, id)
			n++
		}
	}
	return n
}

// Close cancels every computation in flight.
func (t *Tracker) Close() {
	t.cancel()
}
