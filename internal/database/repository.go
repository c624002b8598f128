package database

import (
	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/database/models"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	verification *models.VerificationModel
	raid         *models.RaidModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		verification: models.NewVerification(db, logger),
		raid:         models.NewRaid(db, logger),
	}
}

// Verification returns the verification record model.
func (r *Repository) Verification() *models.VerificationModel {
	return r.verification
}

// Raid returns the raid record model.
func (r *Repository) Raid() *models.RaidModel {
	return r.raid
}
