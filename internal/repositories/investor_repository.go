package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

type investorRepository struct {
	db *gorm.DB
}

// NewInvestorRepository creates a new investor repository bound to db.
func NewInvestorRepository(db *gorm.DB) InvestorRepository {
	return &investorRepository{db: db}
}

func (r *investorRepository) Get(ctx context.Context, id int64) (*models.Investor, error) {
	var investor models.Investor
	if err := r.db.WithContext(ctx).First(&investor, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ErrNotFound{Entity: "investor", ID: strconv.FormatInt(id, 10)}
		}
		return nil, &apperrors.ErrStorage{Op: "get investor", Err: err}
	}
	return &investor, nil
}

func (r *investorRepository) GetByName(ctx context.Context, name string) (*models.Investor, error) {
	var investor models.Investor
	if err := r.db.WithContext(ctx).First(&investor, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ErrNotFound{Entity: "investor", ID: name}
		}
		return nil, &apperrors.ErrStorage{Op: "get investor by name", Err: err}
	}
	return &investor, nil
}

func (r *investorRepository) List(ctx context.Context, includeDisabled bool) ([]*models.Investor, error) {
	query := r.db.WithContext(ctx).Model(&models.Investor{})
	if !includeDisabled {
		query = query.Where("disabled = ?", false)
	}

	var investors []*models.Investor
	if err := query.Order("id ASC").Find(&investors).Error; err != nil {
		return nil, &apperrors.ErrStorage{Op: "list investors", Err: err}
	}
	return investors, nil
}

func (r *investorRepository) Upsert(ctx context.Context, investor *models.Investor) error {
	if err := investor.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var existing models.Investor
	err := r.db.WithContext(ctx).First(&existing, "id = ?", investor.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(investor).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &apperrors.ErrConflict{Entity: "investor", Detail: "duplicate name " + investor.Name}
			}
			return &apperrors.ErrStorage{Op: "create investor", Err: err}
		}
		return nil
	case err != nil:
		return &apperrors.ErrStorage{Op: "upsert investor", Err: err}
	default:
		investor.CreatedAt = existing.CreatedAt
		if err := r.db.WithContext(ctx).Save(investor).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &apperrors.ErrConflict{Entity: "investor", Detail: "duplicate name " + investor.Name}
			}
			return &apperrors.ErrStorage{Op: "update investor", Err: err}
		}
		return nil
	}
}

func (r *investorRepository) NextID(ctx context.Context) (int64, error) {
	// Regular investors start at 1; id 0 belongs to the fund manager.
	var maxID int64
	row := r.db.WithContext(ctx).Model(&models.Investor{}).Select("COALESCE(MAX(id), 0)")
	if err := row.Scan(&maxID).Error; err != nil {
		return 0, &apperrors.ErrStorage{Op: "next investor id", Err: err}
	}
	return maxID + 1, nil
}

func (r *investorRepository) EnsureFundManager(ctx context.Context) (*models.Investor, error) {
	var fm models.Investor
	err := r.db.WithContext(ctx).First(&fm, "id = ?", models.FundManagerID).Error
	if err == nil {
		return &fm, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.ErrStorage{Op: "get fund manager", Err: err}
	}

	created := models.NewFundManager(time.Now())
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, &apperrors.ErrStorage{Op: "create fund manager", Err: err}
	}
	return created, nil
}

func (r *investorRepository) ReplaceAll(ctx context.Context, rows []*models.Investor) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Investor{}).Error; err != nil {
		return &apperrors.ErrStorage{Op: "clear investors", Err: err}
	}
	for _, row := range rows {
		if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
			return &apperrors.ErrStorage{Op: "restore investor", Err: err}
		}
	}
	return nil
}
