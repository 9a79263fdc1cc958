package dataservice_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"studentdash/internal/civil"
	"studentdash/internal/dataservice"
	"studentdash/internal/dataservice/fake"
	"studentdash/internal/model"
)

// unreachableRedis points at a closed port so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedFallsThroughWhenRedisIsDown(t *testing.T) {
	calls := 0
	next := &fake.Service{
		WorkingDays: func(ctx context.Context, start, end civil.Date, region string) (int, error) {
			calls++
			return 21, nil
		},
		Holiday: func(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error) {
			return true, nil
		},
	}
	c := dataservice.NewCached(next, unreachableRedis(t), time.Minute)
	ctx := context.Background()

	n, err := c.GetTotalWorkingDays(ctx, civil.MustParse("2024-01-01"), civil.MustParse("2024-01-31"), "MH")
	if err != nil || n != 21 {
		t.Fatalf("GetTotalWorkingDays = %d, %v; want 21", n, err)
	}
	if calls != 1 {
		t.Fatalf("expected one backend call, got %d", calls)
	}
	hol, err := c.CheckHolidayForStudent(ctx, "u1", "i1", civil.MustParse("2024-01-26"))
	if err != nil || !hol {
		t.Fatalf("CheckHolidayForStudent = %v, %v; want true", hol, err)
	}
}

func TestCachedPropagatesBackendError(t *testing.T) {
	boom := errors.New("backend down")
	next := &fake.Service{
		PresentDays: func(ctx context.Context, studentID, internshipID string) (int, error) {
			return 0, boom
		},
	}
	c := dataservice.NewCached(next, unreachableRedis(t), time.Minute)
	if _, err := c.GetTotalPresentDays(context.Background(), "u1", "i1"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestCachedPassesThroughUncachedOperations(t *testing.T) {
	next := &fake.Service{
		Internships: func(ctx context.Context, studentID string) ([]model.Internship, error) {
			return []model.Internship{{ID: "i1"}}, nil
		},
	}
	c := dataservice.NewCached(next, unreachableRedis(t), time.Minute)
	list, err := c.GetStudentInternships(context.Background(), "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("GetStudentInternships = %v, %v", list, err)
	}
}

// liveRedis starts an in-process Redis server.
func liveRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

const presentKey = "studentdash:present-days:u1:i1"

func TestCachedServesRepeatReadsFromRedis(t *testing.T) {
	mr, rdb := liveRedis(t)
	var calls int32
	next := &fake.Service{
		WorkingDays: func(ctx context.Context, start, end civil.Date, region string) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 21, nil
		},
	}
	c := dataservice.NewCached(next, rdb, time.Minute)
	ctx := context.Background()
	start, end := civil.MustParse("2024-01-01"), civil.MustParse("2024-01-31")

	for i := 0; i < 3; i++ {
		n, err := c.GetTotalWorkingDays(ctx, start, end, "MH")
		if err != nil || n != 21 {
			t.Fatalf("read %d = %d, %v; want 21", i, n, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("backend called %d times, want 1", n)
	}
	key := "studentdash:working-days:MH:2024-01-01:2024-01-31"
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("TTL(%s) = %s, want 1m", key, ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.GetTotalWorkingDays(ctx, start, end, "MH"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expired entry not reloaded: %d backend calls", n)
	}
}

func TestCachedCheckOutInvalidatesPresentDays(t *testing.T) {
	_, rdb := liveRedis(t)
	var present int32 = 3
	next := &fake.Service{
		PresentDays: func(context.Context, string, string) (int, error) {
			return int(atomic.LoadInt32(&present)), nil
		},
		CheckOut: func(ctx context.Context, in dataservice.CheckOut) (*model.AttendanceRecord, error) {
			atomic.AddInt32(&present, 1)
			return &model.AttendanceRecord{ID: in.AttendanceID, Status: model.StatusPresent}, nil
		},
	}
	c := dataservice.NewCached(next, rdb, time.Minute)
	ctx := context.Background()

	if n, _ := c.GetTotalPresentDays(ctx, "u1", "i1"); n != 3 {
		t.Fatalf("present = %d, want 3", n)
	}
	out := dataservice.CheckOut{Scope: dataservice.Scope{AttendanceID: "a1", StudentID: "u1", InternshipID: "i1"}, At: time.Now()}
	if _, err := c.MarkCheckOut(ctx, out); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.GetTotalPresentDays(ctx, "u1", "i1"); n != 4 {
		t.Fatalf("present after check-out = %d, want 4", n)
	}
}

func TestCachedInvalidateHoliday(t *testing.T) {
	_, rdb := liveRedis(t)
	var holiday atomic.Bool
	holiday.Store(true)
	next := &fake.Service{
		Holiday: func(context.Context, string, string, civil.Date) (bool, error) {
			return holiday.Load(), nil
		},
	}
	c := dataservice.NewCached(next, rdb, time.Minute)
	ctx := context.Background()
	day := civil.MustParse("2024-01-26")

	if ok, _ := c.CheckHolidayForStudent(ctx, "u1", "i1", day); !ok {
		t.Fatal("want holiday")
	}
	holiday.Store(false)
	if ok, _ := c.CheckHolidayForStudent(ctx, "u1", "i1", day); !ok {
		t.Fatal("second read should be served from cache")
	}
	c.InvalidateHoliday(ctx, "u1", "i1", day)
	if ok, _ := c.CheckHolidayForStudent(ctx, "u1", "i1", day); ok {
		t.Fatal("invalidated flag still cached")
	}
}

func TestCachedDropsValueLoadedBeforeInvalidation(t *testing.T) {
	mr, rdb := liveRedis(t)
	var (
		c     *dataservice.Cached
		calls int32
	)
	next := &fake.Service{
		PresentDays: func(ctx context.Context, studentID, internshipID string) (int, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				// a check-out is processed while this read is in flight
				c.InvalidatePresentDays(ctx, studentID, internshipID)
				return 3, nil
			}
			return 4, nil
		},
	}
	c = dataservice.NewCached(next, rdb, time.Minute)
	ctx := context.Background()

	if n, _ := c.GetTotalPresentDays(ctx, "u1", "i1"); n != 3 {
		t.Fatalf("first read = %d, want 3", n)
	}
	if mr.Exists(presentKey) {
		t.Fatal("value loaded before the invalidation was written back")
	}
	if n, _ := c.GetTotalPresentDays(ctx, "u1", "i1"); n != 4 {
		t.Fatalf("second read = %d, want 4", n)
	}
	if got, err := mr.Get(presentKey); err != nil || got != "4" {
		t.Fatalf("cached = %q, %v; want 4", got, err)
	}
}
