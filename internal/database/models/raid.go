package models

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/dbretry"
	"github.com/wardenhq/warden/internal/database/types"
	"go.uber.org/zap"
)

// RaidModel handles database operations for raid records.
type RaidModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewRaid creates a new RaidModel.
func NewRaid(db *bun.DB, logger *zap.Logger) *RaidModel {
	return &RaidModel{
		db:     db,
		logger: logger.Named("db_raid"),
	}
}

// Create stores a raid detection.
func (r *RaidModel) Create(ctx context.Context, record *types.RaidRecord) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(record).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save raid record: %w", err)
		}

		return nil
	})
}

// GetRecent returns the most recent raid records for a community.
func (r *RaidModel) GetRecent(ctx context.Context, communityID uint64, limit int) ([]*types.RaidRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.RaidRecord, error) {
		var records []*types.RaidRecord

		err := r.db.NewSelect().
			Model(&records).
			Where("community_id = ?", communityID).
			Order("timestamp DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent raid records: %w", err)
		}

		return records, nil
	})
}

// CountSince returns the number of raids detected for a community since
// the given time.
func (r *RaidModel) CountSince(ctx context.Context, communityID uint64, sinceUnix int64) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := r.db.NewSelect().
			Model((*types.RaidRecord)(nil)).
			Where("community_id = ?", communityID).
			Where("extract(epoch FROM timestamp) >= ?", sinceUnix).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count raid records: %w", err)
		}

		return count, nil
	})
}
