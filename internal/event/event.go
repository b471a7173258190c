// Package event delivers structured deal lifecycle events through a
// database-backed outbox. Delivery is fire-and-forget from the caller's
// perspective: a committed deal mutation is never rolled back because the
// outbox write failed.
package event

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeDealCreated      = "deal.created"
	TypeDealUpdated      = "deal.updated"
	TypeDealStageChanged = "deal.stage_changed"
	TypeDealDeleted      = "deal.deleted"
)

// DealEvent is the structured notification handed to the publisher after a
// successful mutation.
type DealEvent struct {
	Type       string
	OrgID      snowflake.ID
	DealID     snowflake.ID
	PipelineID snowflake.ID
	StageID    snowflake.ID
	OccurredAt time.Time
	Snapshot   map[string]any
}

type Publisher interface {
	Publish(ctx context.Context, event DealEvent) error
}

// DealEventRow is the persisted outbox record.
type DealEventRow struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	OrgID      snowflake.ID      `gorm:"not null;index"`
	EventType  string            `gorm:"type:text;not null"`
	DealID     snowflake.ID      `gorm:"not null;index"`
	PipelineID snowflake.ID      `gorm:"not null"`
	StageID    snowflake.ID      `gorm:"not null"`
	Payload    datatypes.JSONMap `gorm:"type:jsonb"`
	Published  bool              `gorm:"not null;default:false"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DealEventRow) TableName() string { return "deal_events" }

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) Publisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
	}
}

func (p *outboxPublisher) Publish(ctx context.Context, event DealEvent) error {
	payload := datatypes.JSONMap{}
	for key, value := range event.Snapshot {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return p.db.WithContext(ctx).Exec(
		`INSERT INTO deal_events (id, org_id, event_type, deal_id, pipeline_id, stage_id, payload, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, false, ?)`,
		p.genID.Generate(),
		event.OrgID,
		event.Type,
		event.DealID,
		event.PipelineID,
		event.StageID,
		payload,
		occurredAt,
	).Error
}
