// Package idempotency remembers which outbox events each consumer has handled,
// so a Pub/Sub redelivery is acknowledged without repeating its side effects.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Dedup claims (consumer, event) pairs in Redis. A claim lives for ttl, which
// must outlast the subscription's redelivery horizon.
type Dedup struct {
	store markerStore
	ttl   time.Duration
	now   func() time.Time
}

func NewDedup(store markerStore, ttl time.Duration) (*Dedup, error) {
	if store == nil {
		return nil, errors.New("marker store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("dedup ttl must be positive")
	}
	return &Dedup{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports whether this caller is the first to see eventID for consumer.
// The marker records when it was claimed.
func (d *Dedup) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := d.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return d.store.SetNX(ctx, key, d.now().UTC().Format(time.RFC3339), d.ttl)
}

// Release drops a claim so the event is handled again on redelivery.
func (d *Dedup) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := d.key(consumer, eventID)
	if err != nil {
		return err
	}
	return d.store.Del(ctx, key)
}

func (d *Dedup) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return d.store.IdempotencyKey("event:"+consumer, eventID.String()), nil
}
