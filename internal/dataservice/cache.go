package dataservice

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"studentdash/internal/civil"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
)

// Cached is a read-through Redis cache in front of the calendar counters.
// Redis failures fall through to the wrapped service.
type Cached struct {
	Service
	rdb *redis.Client
	ttl time.Duration
}

// NewCached wraps next. Entries expire after ttl.
func NewCached(next Service, rdb *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{Service: next, rdb: rdb, ttl: ttl}
}

func workingDaysKey(start, end civil.Date, region string) string {
	return "studentdash:working-days:" + region + ":" + start.String() + ":" + end.String()
}

func presentDaysKey(studentID, internshipID string) string {
	return "studentdash:present-days:" + studentID + ":" + internshipID
}

func holidayKey(studentID, internshipID string, date civil.Date) string {
	return "studentdash:holiday:" + studentID + ":" + internshipID + ":" + date.String()
}

func (c *Cached) GetTotalWorkingDays(ctx context.Context, start, end civil.Date, region string) (int, error) {
	return c.cachedInt(ctx, "working_days", workingDaysKey(start, end, region), func() (int, error) {
		return c.Service.GetTotalWorkingDays(ctx, start, end, region)
	})
}

func (c *Cached) GetTotalPresentDays(ctx context.Context, studentID, internshipID string) (int, error) {
	return c.cachedInt(ctx, "present_days", presentDaysKey(studentID, internshipID), func() (int, error) {
		return c.Service.GetTotalPresentDays(ctx, studentID, internshipID)
	})
}

func (c *Cached) CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error) {
	n, err := c.cachedInt(ctx, "holiday", holidayKey(studentID, internshipID, date), func() (int, error) {
		ok, err := c.Service.CheckHolidayForStudent(ctx, studentID, internshipID, date)
		if ok {
			return 1, err
		}
		return 0, err
	})
	return n == 1, err
}

// MarkCheckOut drops the cached present-day count, which a check-out can change.
func (c *Cached) MarkCheckOut(ctx context.Context, in CheckOut) (*model.AttendanceRecord, error) {
	rec, err := c.Service.MarkCheckOut(ctx, in)
	if err == nil {
		c.InvalidatePresentDays(ctx, in.StudentID, in.InternshipID)
	}
	return rec, err
}

// InvalidatePresentDays removes the cached present-day count of one internship.
func (c *Cached) InvalidatePresentDays(ctx context.Context, studentID, internshipID string) {
	if err := c.invalidate(ctx, presentDaysKey(studentID, internshipID)); err != nil {
		log.Printf("cache invalidate %s/%s failed: %v", studentID, internshipID, err)
	}
}

// InvalidateHoliday removes the cached holiday flag of one day.
func (c *Cached) InvalidateHoliday(ctx context.Context, studentID, internshipID string, date civil.Date) {
	if err := c.invalidate(ctx, holidayKey(studentID, internshipID, date)); err != nil {
		log.Printf("cache invalidate holiday %s/%s/%s failed: %v", studentID, internshipID, date, err)
	}
}

// errInvalidated aborts a write-back whose value was loaded before an invalidation.
var errInvalidated = errors.New("invalidated during load")

// genKey counts the invalidations of key. A reader only writes back a loaded value
// if the count did not move while it was loading.
func genKey(key string) string {
	return key + ":gen"
}

func (c *Cached) invalidate(ctx context.Context, key string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(key))
		// outlives every entry written under the previous generation
		pipe.Expire(ctx, genKey(key), 2*c.ttl)
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func (c *Cached) cachedInt(ctx context.Context, kind, key string, load func() (int, error)) (int, error) {
	gen, cached, err := c.lookup(ctx, key)
	if err != nil {
		log.Printf("cache get %s failed: %v", key, err)
	} else if cached != nil {
		if n, perr := strconv.Atoi(*cached); perr == nil {
			metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
			return n, nil
		}
	}
	metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()

	n, lerr := load()
	if lerr != nil {
		return 0, lerr
	}
	if err == nil {
		c.store(ctx, key, gen, n)
	}
	return n, nil
}

// lookup reads the cached value and the generation of key in one round trip.
func (c *Cached) lookup(ctx context.Context, key string) (gen string, val *string, err error) {
	vals, err := c.rdb.MGet(ctx, key, genKey(key)).Result()
	if err != nil {
		return "", nil, err
	}
	if s, ok := vals[1].(string); ok {
		gen = s
	}
	if s, ok := vals[0].(string); ok {
		val = &s
	}
	return gen, val, nil
}

func (c *Cached) store(ctx context.Context, key, gen string, n int) {
	gk := genKey(key)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errInvalidated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, strconv.Itoa(n), c.ttl)
			return nil
		})
		return err
	}, gk)
	switch {
	case err == nil:
	case errors.Is(err, errInvalidated), errors.Is(err, redis.TxFailedErr):
		// a newer value will be loaded by the next reader
	default:
		log.Printf("cache set %s failed: %v", key, err)
	}
}
