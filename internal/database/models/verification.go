package models

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// VerificationModel handles database operations for verification records.
type VerificationModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewVerification creates a new VerificationModel.
func NewVerification(db *bun.DB, logger *zap.Logger) *VerificationModel {
	return &VerificationModel{
		db:     db,
		logger: logger.Named("db_verification"),
	}
}

// Create stores a finished verification session.
func (r *VerificationModel) Create(ctx context.Context, record *types.VerificationRecord) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(record).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save verification record: %w", err)
		}

		return nil
	})
}

// GetDailyBreakdown aggregates verification outcomes per day for the last
// given number of days.
func (r *VerificationModel) GetDailyBreakdown(ctx context.Context, days int) ([]*types.DailyVerificationStats, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.DailyVerificationStats, error) {
		var stats []*types.DailyVerificationStats

		since := time.Now().UTC().AddDate(0, 0, -days)

		err := r.db.NewSelect().
			Model((*types.VerificationRecord)(nil)).
			ColumnExpr("date_trunc('day', timestamp) AS date").
			ColumnExpr("count(*) FILTER (WHERE outcome = ?) AS succeeded", types.VerificationOutcomeSuccess).
			ColumnExpr("count(*) FILTER (WHERE outcome = ?) AS exhausted", types.VerificationOutcomeExhausted).
			ColumnExpr("count(*) FILTER (WHERE outcome = ?) AS expired", types.VerificationOutcomeExpired).
			ColumnExpr("coalesce(avg(duration_ms) FILTER (WHERE outcome = ?), 0) AS avg_duration_ms", types.VerificationOutcomeSuccess).
			Where("timestamp >= ?", since).
			GroupExpr("date_trunc('day', timestamp)").
			OrderExpr("date ASC").
			Scan(ctx, &stats)
		if err != nil {
			return nil, fmt.Errorf("failed to get daily verification breakdown: %w", err)
		}

		return stats, nil
	})
}
