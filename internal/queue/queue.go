package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studentdash/internal/civil"
)

// Event types published after a successful mutation.
const (
	CheckedIn       = "attendance.checked_in"
	CheckedOut      = "attendance.checked_out"
	ReportSubmitted = "report.submitted"
)

// Event describes a change to one attendance day.
type Event struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	StudentID    string     `json:"student_id"`
	InternshipID string     `json:"internship_id"`
	AttendanceID string     `json:"attendance_id"`
	Date         civil.Date `json:"date"`
	At           time.Time  `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(typ, studentID, internshipID, attendanceID string, date civil.Date) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         typ,
		StudentID:    studentID,
		InternshipID: internshipID,
		AttendanceID: attendanceID,
		Date:         date,
		At:           time.Now().UTC(),
	}
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, evt Event) error
	Consume(ctx context.Context) (<-chan Event, error)
}

// InMemory is a channel-backed queue for dev and tests.
type InMemory struct {
	ch chan Event
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Event, size)}
}

// Publish enqueues an event, blocking while the buffer is full.
func (q *InMemory) Publish(ctx context.Context, evt Event) error {
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that is closed when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-q.ch:
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue is a Redis list used with LPUSH/BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "studentdash:events"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event.
func (q *RedisQueue) Publish(ctx context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

// Consume streams events using BRPOP. Undecodable entries are logged and dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					log.Printf("queue pop failed: %v", err)
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			evt, err := Decode([]byte(res[1]))
			if err != nil {
				log.Printf("dropping queue entry: %v", err)
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Decode parses a serialized event.
func Decode(b []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(b, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type == "" {
		return Event{}, errors.New("decode event: missing type")
	}
	return evt, nil
}
