package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfund-vn/fundcore/internal/models"
)

// InvestorRepository defines typed access to the investor table.
type InvestorRepository interface {
	Get(ctx context.Context, id int64) (*models.Investor, error)
	GetByName(ctx context.Context, name string) (*models.Investor, error)
	List(ctx context.Context, includeDisabled bool) ([]*models.Investor, error)
	Upsert(ctx context.Context, investor *models.Investor) error
	NextID(ctx context.Context) (int64, error)
	// EnsureFundManager returns the singleton fund manager account,
	// creating investor 0 if it does not exist yet.
	EnsureFundManager(ctx context.Context) (*models.Investor, error)
	ReplaceAll(ctx context.Context, rows []*models.Investor) error
}

// TrancheRepository defines typed access to the tranche table.
type TrancheRepository interface {
	Get(ctx context.Context, trancheID string) (*models.Tranche, error)
	ListByInvestor(ctx context.Context, investorID int64) ([]*models.Tranche, error)
	ListAll(ctx context.Context) ([]*models.Tranche, error)
	Create(ctx context.Context, tranche *models.Tranche) error
	Update(ctx context.Context, tranche *models.Tranche) error
	Delete(ctx context.Context, trancheID string) error
	// DeleteIfEmpty removes the tranche when its units are at or below the
	// dust threshold. Returns true when the tranche was removed.
	DeleteIfEmpty(ctx context.Context, trancheID string, dust decimal.Decimal) (bool, error)
	ReplaceAll(ctx context.Context, rows []*models.Tranche) error
}

// TransactionRepository defines typed access to the append-only transaction log.
type TransactionRepository interface {
	// Append assigns the next dense id (max existing + 1) and inserts the row.
	Append(ctx context.Context, tx *models.Transaction) (int64, error)
	Get(ctx context.Context, id int64) (*models.Transaction, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter *models.TransactionFilter) ([]*models.Transaction, error)
	Count(ctx context.Context, filter *models.TransactionFilter) (int, error)
	// Latest returns the newest transaction by (date, id) descending, or
	// nil when the log is empty.
	Latest(ctx context.Context) (*models.Transaction, error)
	// LatestForInvestor returns the newest transaction of one investor by
	// (date, id) descending, or nil when there is none.
	LatestForInvestor(ctx context.Context, investorID int64) (*models.Transaction, error)
	ReplaceAll(ctx context.Context, rows []*models.Transaction) error
}

// FeeRecordRepository defines typed access to the fee record table.
type FeeRecordRepository interface {
	Append(ctx context.Context, record *models.FeeRecord) (int64, error)
	List(ctx context.Context, period string, investorID *int64) ([]*models.FeeRecord, error)
	ReplaceAll(ctx context.Context, rows []*models.FeeRecord) error
}

// AuditRepository defines typed access to the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error)
}
