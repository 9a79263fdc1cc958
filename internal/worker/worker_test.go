package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"studentdash/internal/civil"
	"studentdash/internal/queue"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) InvalidatePresentDays(ctx context.Context, studentID, internshipID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "present:"+studentID+"/"+internshipID)
}

func (r *recorder) InvalidateHoliday(ctx context.Context, studentID, internshipID string, date civil.Date) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "holiday:"+studentID+"/"+internshipID+"/"+date.String())
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestHandle(t *testing.T) {
	day := civil.MustParse("2024-03-15")
	tests := []struct {
		typ  string
		want []string
	}{
		{queue.CheckedIn, []string{"present:u1/i1", "holiday:u1/i1/2024-03-15"}},
		{queue.CheckedOut, []string{"present:u1/i1"}},
		{queue.ReportSubmitted, nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			rec := &recorder{}
			New(rec).Handle(context.Background(), queue.NewEvent(tt.typ, "u1", "i1", "a1", day))
			got := rec.snapshot()
			if len(got) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("calls = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRunDrainsQueue(t *testing.T) {
	q := queue.NewInMemory(4)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(rec).Run(ctx, q) }()

	day := civil.MustParse("2024-03-15")
	if err := q.Publish(ctx, queue.NewEvent(queue.CheckedOut, "u1", "i1", "a1", day)); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
