package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository bound to db.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Append(ctx context.Context, tx *models.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	// Dense id assignment: ids are strictly increasing with the commit
	// order of the write gate.
	var maxID int64
	row := r.db.WithContext(ctx).Model(&models.Transaction{}).Select("COALESCE(MAX(id), 0)")
	if err := row.Scan(&maxID).Error; err != nil {
		return 0, &apperrors.ErrStorage{Op: "next transaction id", Err: err}
	}
	tx.ID = maxID + 1

	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, &apperrors.ErrConflict{Entity: "transaction", Detail: "duplicate id " + strconv.FormatInt(tx.ID, 10)}
		}
		return 0, &apperrors.ErrStorage{Op: "append transaction", Err: err}
	}
	return tx.ID, nil
}

func (r *transactionRepository) Get(ctx context.Context, id int64) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ErrNotFound{Entity: "transaction", ID: strconv.FormatInt(id, 10)}
		}
		return nil, &apperrors.ErrStorage{Op: "get transaction", Err: err}
	}
	return &tx, nil
}

func (r *transactionRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.Transaction{}, "id = ?", id)
	if result.Error != nil {
		return &apperrors.ErrStorage{Op: "delete transaction", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &apperrors.ErrNotFound{Entity: "transaction", ID: strconv.FormatInt(id, 10)}
	}
	return nil
}

func (r *transactionRepository) applyFilter(query *gorm.DB, filter *models.TransactionFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if filter.InvestorID != nil {
		query = query.Where("investor_id = ?", *filter.InvestorID)
	}
	if len(filter.Types) > 0 {
		query = query.Where("type IN ?", filter.Types)
	}
	if filter.StartDate != nil {
		query = query.Where("date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("date <= ?", *filter.EndDate)
	}
	return query
}

func (r *transactionRepository) List(ctx context.Context, filter *models.TransactionFilter) ([]*models.Transaction, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), filter)
	query = query.Order("date DESC, id DESC")

	if filter != nil && filter.Limit > 0 {
		query = query.Limit(filter.Limit)
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
	}

	var transactions []*models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, &apperrors.ErrStorage{Op: "list transactions", Err: err}
	}
	return transactions, nil
}

func (r *transactionRepository) Count(ctx context.Context, filter *models.TransactionFilter) (int, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, &apperrors.ErrStorage{Op: "count transactions", Err: err}
	}
	return int(count), nil
}

func (r *transactionRepository) Latest(ctx context.Context) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).Order("date DESC, id DESC").First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &apperrors.ErrStorage{Op: "latest transaction", Err: err}
	}
	return &tx, nil
}

func (r *transactionRepository) LatestForInvestor(ctx context.Context, investorID int64) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("investor_id = ?", investorID).
		Order("date DESC, id DESC").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &apperrors.ErrStorage{Op: "latest transaction for investor", Err: err}
	}
	return &tx, nil
}

func (r *transactionRepository) ReplaceAll(ctx context.Context, rows []*models.Transaction) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Transaction{}).Error; err != nil {
		return &apperrors.ErrStorage{Op: "clear transactions", Err: err}
	}
	for _, row := range rows {
		if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
			return &apperrors.ErrStorage{Op: "restore transaction", Err: err}
		}
	}
	return nil
}
