package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfund-vn/fundcore/internal/backup"
	"github.com/openfund-vn/fundcore/internal/models"
)

// FundService manages investors and the fund manager singleton.
type FundService interface {
	AddInvestor(ctx context.Context, investor *models.Investor) (*models.Investor, error)
	UpdateInvestor(ctx context.Context, investor *models.Investor) error
	DisableInvestor(ctx context.Context, id int64) error
	EnableInvestor(ctx context.Context, id int64) error
	GetInvestor(ctx context.Context, id int64) (*models.Investor, error)
	ListInvestors(ctx context.Context, includeDisabled bool) ([]*models.Investor, error)
	EnsureFundManager(ctx context.Context) (*models.Investor, error)
}

// TransactionService is the mutation pipeline over the tranche ledger. Every
// operation is atomic: it either commits the transaction row, the tranche
// mutations and the audit entry together, or leaves no trace.
type TransactionService interface {
	Deposit(ctx context.Context, investorID int64, amount, newTotalNAV decimal.Decimal, date time.Time) (*models.Transaction, error)
	Withdraw(ctx context.Context, investorID int64, amount, newTotalNAV decimal.Decimal, date time.Time) (*models.Transaction, error)
	UpdateNAV(ctx context.Context, totalNAV decimal.Decimal, date time.Time) (*models.Transaction, error)
	// FundManagerWithdraw drains fee units from the fund manager account.
	// In full mode amount is ignored and every fund manager tranche is
	// consumed at the current price.
	FundManagerWithdraw(ctx context.Context, amount decimal.Decimal, full bool, date time.Time) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	UndoTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, filter *models.TransactionFilter) ([]*models.Transaction, error)
	// LatestNAV returns the NAV of the newest transaction by (date, id)
	// descending, any type. ok is false while the log is empty.
	LatestNAV(ctx context.Context) (nav decimal.Decimal, ok bool, err error)
	// RegisterCommitHook adds a callback invoked with the transaction id
	// after each successful mutation commit.
	RegisterCommitHook(hook func(txID int64))
}

// FeeService is the annual performance fee engine.
type FeeService interface {
	PreviewFees(ctx context.Context, endDate time.Time, totalNAV decimal.Decimal) (*models.FeePreview, error)
	ApplyFees(ctx context.Context, period string, endDate time.Time, totalNAV decimal.Decimal, confirmToken string, ackRisk, ackBackup bool) ([]*models.FeeRecord, error)
	// CalculateInvestorFee is the read-only per-investor variant used for
	// withdrawal planning.
	CalculateInvestorFee(ctx context.Context, investorID int64, endDate time.Time, totalNAV decimal.Decimal) (*models.FeePreviewRow, error)
}

// ReportingService derives read-only projections over a consistent snapshot.
type ReportingService interface {
	InvestorBalance(ctx context.Context, investorID int64, totalNAV decimal.Decimal) (*models.InvestorBalance, error)
	LifetimePerformance(ctx context.Context, investorID int64, totalNAV decimal.Decimal) (*models.LifetimePerformance, error)
	DashboardKPIs(ctx context.Context, totalNAV decimal.Decimal) (*models.DashboardKPIs, error)
	NAVHistory(ctx context.Context) ([]*models.NAVPoint, error)
	FeeHistory(ctx context.Context, period string, investorID *int64) ([]*models.FeeRecord, error)
}

// BackupService exports and restores snapshot archives.
type BackupService interface {
	Snapshot(ctx context.Context, kind string) (*backup.Manifest, error)
	ListBackups(ctx context.Context) ([]backup.Manifest, error)
	Restore(ctx context.Context, backupID, confirmPhrase string, createSafetyBackup bool) error
	// ScheduleAutoBackup runs an asynchronous snapshot after a committed
	// transaction. Failures are logged and retried, never propagated.
	ScheduleAutoBackup(txID int64)
}
