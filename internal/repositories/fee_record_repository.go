package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

type feeRecordRepository struct {
	db *gorm.DB
}

// NewFeeRecordRepository creates a new fee record repository bound to db.
func NewFeeRecordRepository(db *gorm.DB) FeeRecordRepository {
	return &feeRecordRepository{db: db}
}

func (r *feeRecordRepository) Append(ctx context.Context, record *models.FeeRecord) (int64, error) {
	if err := record.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	var maxID int64
	row := r.db.WithContext(ctx).Model(&models.FeeRecord{}).Select("COALESCE(MAX(id), 0)")
	if err := row.Scan(&maxID).Error; err != nil {
		return 0, &apperrors.ErrStorage{Op: "next fee record id", Err: err}
	}
	record.ID = maxID + 1

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, &apperrors.ErrStorage{Op: "append fee record", Err: err}
	}
	return record.ID, nil
}

func (r *feeRecordRepository) List(ctx context.Context, period string, investorID *int64) ([]*models.FeeRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.FeeRecord{})
	if period != "" {
		query = query.Where("period = ?", period)
	}
	if investorID != nil {
		query = query.Where("investor_id = ?", *investorID)
	}

	var records []*models.FeeRecord
	if err := query.Order("calculation_date DESC, id DESC").Find(&records).Error; err != nil {
		return nil, &apperrors.ErrStorage{Op: "list fee records", Err: err}
	}
	return records, nil
}

func (r *feeRecordRepository) ReplaceAll(ctx context.Context, rows []*models.FeeRecord) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.FeeRecord{}).Error; err != nil {
		return &apperrors.ErrStorage{Op: "clear fee records", Err: err}
	}
	for _, row := range rows {
		if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
			return &apperrors.ErrStorage{Op: "restore fee record", Err: err}
		}
	}
	return nil
}
