package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/openfund-vn/fundcore/internal/db"
	"github.com/openfund-vn/fundcore/internal/models"
)

// Repos bundles the typed repositories over one database handle. Inside a
// write transaction the bundle is bound to the transaction handle, so every
// mutation through it commits or rolls back together.
type Repos struct {
	Investors    InvestorRepository
	Tranches     TrancheRepository
	Transactions TransactionRepository
	FeeRecords   FeeRecordRepository
	Audit        AuditRepository
}

// NewRepos builds a repository bundle bound to the given GORM handle.
func NewRepos(g *gorm.DB) *Repos {
	return &Repos{
		Investors:    NewInvestorRepository(g),
		Tranches:     NewTrancheRepository(g),
		Transactions: NewTransactionRepository(g),
		FeeRecords:   NewFeeRecordRepository(g),
		Audit:        NewAuditRepository(g),
	}
}

// Store is the single transactional boundary over the entity tables. All
// mutations go through WithWriteTxn; reads may use Repos directly and see the
// last committed state.
type Store struct {
	database *db.DB
	gate     *WriteGate
}

// NewStore creates a store with a write gate using the given timeout.
func NewStore(database *db.DB, gateTimeout time.Duration) *Store {
	return &Store{
		database: database,
		gate:     NewWriteGate(gateTimeout),
	}
}

// Repos returns repositories for reads outside a write transaction.
func (s *Store) Repos() *Repos {
	return NewRepos(s.database.DB)
}

// DB exposes the underlying connection.
func (s *Store) DB() *db.DB {
	return s.database
}

// WithWriteTxn serializes the mutation behind the process-wide write gate and
// runs fn inside one storage transaction. Either every change inside fn
// commits, or none do. Cancellation before the gate is acquired aborts the
// operation; once the storage transaction has started the outcome is commit
// or rollback, never a partial state.
func (s *Store) WithWriteTxn(ctx context.Context, fn func(r *Repos) error) error {
	if err := s.gate.Acquire(ctx); err != nil {
		return err
	}
	defer s.gate.Release()

	return s.database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

// Migrate creates or updates the entity tables. Production deployments run
// the SQL migrations instead; this keeps tests and developer setups hermetic.
func (s *Store) Migrate() error {
	return s.database.AutoMigrate(
		&models.Investor{},
		&models.Tranche{},
		&models.Transaction{},
		&models.FeeRecord{},
		&models.AuditEntry{},
	)
}
