package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// OutboxEvent is a pending or published order event. Rows are written in the
// same transaction as the order change they describe and are never updated
// apart from publish bookkeeping.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"autoCreateTime"`
	PublishedAt   *time.Time
	AttemptCount  int `gorm:"not null;default:0"`
	LastError     *string
}

// OutboxDLQ holds an event the publisher gave up on. EventID is unique, so an
// event is dead-lettered at most once.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID       uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     enums.OutboxEventType      `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                  `gorm:"type:uuid;not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string
	AttemptCount  int       `gorm:"not null;default:0"`
	FailedAt      time.Time `gorm:"autoCreateTime"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }
