package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/dbtest"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

func TestEmitStoresEnvelopeInTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	orderID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "buyer"}

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventOrderTransitioned,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actor,
		Data:          map[string]string{"to": "accepted"},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.Where("aggregate_id = ?", orderID).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	var env PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.EventID != row.ID.String() || env.Version != currentSchema || !env.OccurredAt.Equal(fixed) {
		t.Fatalf("unexpected envelope %+v for row %s", env, row.ID)
	}
	if env.Actor == nil || env.Actor.UserID != actor.UserID {
		t.Fatalf("actor not carried: %+v", env.Actor)
	}
	if string(env.Data) != `{"to":"accepted"}` {
		t.Fatalf("unexpected data %s", env.Data)
	}
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	valid := DomainEvent{
		EventType:     enums.EventOrderTransitioned,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          struct{}{},
	}

	cases := map[string]func(*DomainEvent){
		"unknown type":  func(e *DomainEvent) { e.EventType = "order_teleported" },
		"no aggregate":  func(e *DomainEvent) { e.AggregateID = uuid.Nil },
		"no data":       func(e *DomainEvent) { e.Data = nil },
		"bad aggregate": func(e *DomainEvent) { e.AggregateType = "cart" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := valid
			mutate(&event)
			if err := svc.Emit(context.Background(), db, event); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if err := svc.Emit(context.Background(), nil, valid); err == nil {
		t.Fatal("expected error without transaction")
	}

	var n int64
	db.Model(&models.OutboxEvent{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected events were stored: %d", n)
	}
}
