package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

type trancheRepository struct {
	db *gorm.DB
}

// NewTrancheRepository creates a new tranche repository bound to db.
func NewTrancheRepository(db *gorm.DB) TrancheRepository {
	return &trancheRepository{db: db}
}

func (r *trancheRepository) Get(ctx context.Context, trancheID string) (*models.Tranche, error) {
	var tranche models.Tranche
	if err := r.db.WithContext(ctx).First(&tranche, "tranche_id = ?", trancheID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ErrNotFound{Entity: "tranche", ID: trancheID}
		}
		return nil, &apperrors.ErrStorage{Op: "get tranche", Err: err}
	}
	return &tranche, nil
}

func (r *trancheRepository) ListByInvestor(ctx context.Context, investorID int64) ([]*models.Tranche, error) {
	var tranches []*models.Tranche
	err := r.db.WithContext(ctx).
		Where("investor_id = ?", investorID).
		Order("original_entry_date ASC, tranche_id ASC").
		Find(&tranches).Error
	if err != nil {
		return nil, &apperrors.ErrStorage{Op: "list tranches by investor", Err: err}
	}
	return tranches, nil
}

func (r *trancheRepository) ListAll(ctx context.Context) ([]*models.Tranche, error) {
	var tranches []*models.Tranche
	err := r.db.WithContext(ctx).
		Order("original_entry_date ASC, tranche_id ASC").
		Find(&tranches).Error
	if err != nil {
		return nil, &apperrors.ErrStorage{Op: "list tranches", Err: err}
	}
	return tranches, nil
}

func (r *trancheRepository) Create(ctx context.Context, tranche *models.Tranche) error {
	if err := tranche.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(tranche).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &apperrors.ErrConflict{Entity: "tranche", Detail: "duplicate id " + tranche.TrancheID}
		}
		return &apperrors.ErrStorage{Op: "create tranche", Err: err}
	}
	return nil
}

func (r *trancheRepository) Update(ctx context.Context, tranche *models.Tranche) error {
	result := r.db.WithContext(ctx).Save(tranche)
	if result.Error != nil {
		return &apperrors.ErrStorage{Op: "update tranche", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &apperrors.ErrNotFound{Entity: "tranche", ID: tranche.TrancheID}
	}
	return nil
}

func (r *trancheRepository) Delete(ctx context.Context, trancheID string) error {
	result := r.db.WithContext(ctx).Delete(&models.Tranche{}, "tranche_id = ?", trancheID)
	if result.Error != nil {
		return &apperrors.ErrStorage{Op: "delete tranche", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &apperrors.ErrNotFound{Entity: "tranche", ID: trancheID}
	}
	return nil
}

func (r *trancheRepository) DeleteIfEmpty(ctx context.Context, trancheID string, dust decimal.Decimal) (bool, error) {
	tranche, err := r.Get(ctx, trancheID)
	if err != nil {
		return false, err
	}
	if !tranche.IsDust(dust) {
		return false, nil
	}
	if err := r.Delete(ctx, trancheID); err != nil {
		return false, err
	}
	return true, nil
}

func (r *trancheRepository) ReplaceAll(ctx context.Context, rows []*models.Tranche) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Tranche{}).Error; err != nil {
		return &apperrors.ErrStorage{Op: "clear tranches", Err: err}
	}
	for _, row := range rows {
		if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
			return &apperrors.ErrStorage{Op: "restore tranche", Err: err}
		}
	}
	return nil
}
