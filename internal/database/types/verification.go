package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationOutcome is the terminal state of a verification session.
type VerificationOutcome string

const (
	VerificationOutcomeSuccess   VerificationOutcome = "success"
	VerificationOutcomeExhausted VerificationOutcome = "exhausted"
	VerificationOutcomeExpired   VerificationOutcome = "expired"
)

// VerificationRecord stores one finished verification session.
type VerificationRecord struct {
	bun.BaseModel `bun:"table:verification_records"`

	ID          int64               `bun:",pk,autoincrement"`
	UUID        uuid.UUID           `bun:",notnull"`
	CommunityID uint64              `bun:",notnull"`
	MemberID    uint64              `bun:",notnull"`
	Outcome     VerificationOutcome `bun:",notnull"`
	// DurationMS is the time from challenge issuance to success; zero for
	// failed outcomes.
	DurationMS int64     `bun:",notnull,default:0"`
	Timestamp  time.Time `bun:",notnull"`
}

// DailyVerificationStats is one day of aggregated verification outcomes.
type DailyVerificationStats struct {
	Date          time.Time `bun:"date"`
	Succeeded     int       `bun:"succeeded"`
	Exhausted     int       `bun:"exhausted"`
	Expired       int       `bun:"expired"`
	AvgDurationMS float64   `bun:"avg_duration_ms"`
}
