package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types published after successful writes.
const (
	EventIngested   = "curriculum.ingested"
	EventVideoAdded = "curriculum.video_added"
)

// Event describes a committed curriculum change.
type Event struct {
	Type      string         `json:"type"`
	Subject   string         `json:"subject"`
	Board     Board          `json:"board,omitempty"`
	Grade     string         `json:"grade,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// EventPublisher is told about committed writes.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher ignores all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}

// MemoryPublisher keeps events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{events: []Event{}}
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()

	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event{}, p.events...)
}

// PostgresEventLog appends events to the curriculum_events audit table.
type PostgresEventLog struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLog(pool *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{pool: pool}
}

func (l *PostgresEventLog) Publish(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event log pool is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO curriculum_events (event_type, subject, board, grade, data, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.Type,
		event.Subject,
		nullIfEmpty(string(event.Board)),
		nullIfEmpty(event.Grade),
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged", "type", event.Type, "subject", event.Subject)
	return nil
}

// FanOut publishes to every publisher and joins their errors.
type FanOut []EventPublisher

func (f FanOut) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
