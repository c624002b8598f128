package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RaidRecord stores one raid detection and the action dispatched for it.
type RaidRecord struct {
	bun.BaseModel `bun:"table:raid_records"`

	ID          int64     `bun:",pk,autoincrement"`
	UUID        uuid.UUID `bun:",notnull"`
	CommunityID uint64    `bun:",notnull"`
	Category    string    `bun:",notnull"`
	Score       int       `bun:",notnull"`
	Level       string    `bun:",notnull"`
	// Indicators are the human-readable signal descriptions that
	// contributed to the score.
	Indicators    []string  `bun:",array"`
	AffectedCount int       `bun:",notnull,default:0"`
	ActionTaken   string    `bun:",notnull,default:''"`
	Timestamp     time.Time `bun:",notnull"`
}
