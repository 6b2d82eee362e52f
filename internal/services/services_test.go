package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/config"
	"github.com/openfund-vn/fundcore/internal/db"
	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

type testEnv struct {
	store        *repositories.Store
	cfg          *config.Config
	fund         FundService
	transactions TransactionService
	fees         FeeService
	reports      ReportingService
	backups      BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.ConnectSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.Default()
	cfg.BackupDir = t.TempDir()

	store := repositories.NewStore(database, cfg.WriteGateTimeout)
	require.NoError(t, store.Migrate())

	logger := zap.NewNop()
	return &testEnv{
		store:        store,
		cfg:          cfg,
		fund:         NewFundService(store, cfg, logger),
		transactions: NewTransactionService(store, cfg, logger),
		fees:         NewFeeService(store, cfg, logger),
		reports:      NewReportingService(store),
		backups:      NewBackupService(store, cfg, logger),
	}
}

func (e *testEnv) addInvestor(t *testing.T, id int64, name string, join time.Time) *models.Investor {
	t.Helper()
	investor, err := e.fund.AddInvestor(context.Background(), &models.Investor{
		ID:       id,
		Name:     name,
		JoinDate: join,
	})
	require.NoError(t, err)
	return investor
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimalEqual(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	require.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

// requireDecimalClose tolerates sub-dust differences introduced by price
// rounding.
func requireDecimalClose(t *testing.T, expected, actual decimal.Decimal, tolerance string) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	require.True(t, diff.LessThanOrEqual(dec(tolerance)),
		"expected %s within %s of %s (diff %s)", actual, tolerance, expected, diff)
}
