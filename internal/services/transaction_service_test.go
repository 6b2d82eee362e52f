package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

var (
	day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
)

func TestDeposit_SeedsFundAtSeedPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	tx, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)

	require.Equal(t, int64(1), tx.ID)
	require.Equal(t, models.TxTypeDeposit, tx.Type)
	requireDecimalEqual(t, dec("1000"), tx.UnitsChange)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	requireDecimalEqual(t, dec("1000"), tranches[0].Units)
	requireDecimalEqual(t, dec("10000"), tranches[0].EntryNAV)
	requireDecimalEqual(t, dec("10000"), tranches[0].HWM)
	requireDecimalEqual(t, dec("10000000"), tranches[0].InvestedValue)
}

func TestDeposit_PriceExcludesIncomingCash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	env.addInvestor(t, 2, "Bob", day1)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)

	// Book is worth 12M over 1000 units when Bob's 6M arrives: price 12000,
	// 500 units minted.
	tx, err := env.transactions.Deposit(ctx, 2, dec("6000000"), dec("18000000"), day1)
	require.NoError(t, err)
	requireDecimalEqual(t, dec("500"), tx.UnitsChange)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	requireDecimalEqual(t, dec("12000"), tranches[0].EntryNAV)
}

func TestDeposit_RejectsDisabledInvestor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	require.NoError(t, env.fund.DisableInvestor(ctx, 1))

	_, err := env.transactions.Deposit(ctx, 1, dec("1000"), dec("1000"), day0)
	require.True(t, apperrors.IsValidation(err), "expected validation error, got %v", err)
}

func TestDeposit_RejectsValuelessBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	env.addInvestor(t, 2, "Bob", day1)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)

	// Units are outstanding but the reported total equals the incoming cash,
	// so the existing book prices at zero. The deposit must be refused, not
	// divide by it.
	_, err = env.transactions.Deposit(ctx, 2, dec("5000000"), dec("5000000"), day1)
	require.True(t, apperrors.IsValidation(err), "expected validation error, got %v", err)

	count, err := env.store.Repos().Transactions.Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestWithdraw_AllowsDisabledInvestor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	require.NoError(t, env.fund.DisableInvestor(ctx, 1))

	// Disabling blocks new money only; the position can still be unwound.
	tx, err := env.transactions.Withdraw(ctx, 1, dec("5000000"), dec("5000000"), day1)
	require.NoError(t, err)
	requireDecimalEqual(t, dec("-500"), tx.UnitsChange)
}

func TestWithdraw_BurnsFIFOAtPreCashPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	env.addInvestor(t, 2, "Bob", day1)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)
	_, err = env.transactions.Deposit(ctx, 2, dec("6000000"), dec("18000000"), day1)
	require.NoError(t, err)

	// Fund holds 18M over 1500 units. Alice takes 6M out: price 12000,
	// 500 units burned from her single tranche.
	tx, err := env.transactions.Withdraw(ctx, 1, dec("6000000"), dec("12000000"), day2)
	require.NoError(t, err)
	requireDecimalEqual(t, dec("-500"), tx.UnitsChange)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	requireDecimalEqual(t, dec("500"), tranches[0].Units)
	requireDecimalEqual(t, dec("5000000"), tranches[0].InvestedValue)
	// Original basis is untouched.
	requireDecimalEqual(t, dec("10000000"), tranches[0].OriginalInvestedValue)
	requireDecimalEqual(t, dec("10000"), tranches[0].OriginalEntryNAV)
}

func TestWithdraw_RetiresEmptiedTranche(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)

	// Full exit: all 1000 units burn at the seed price and the fund empties.
	tx, err := env.transactions.Withdraw(ctx, 1, dec("10000000"), dec("0"), day1)
	require.NoError(t, err)
	require.Len(t, tx.TrancheDeltas, 1)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, tranches)
	require.NotNil(t, tx.TrancheDeltas[0].Removed)
}

func TestWithdraw_InsufficientUnits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	env.addInvestor(t, 2, "Bob", day1)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.Deposit(ctx, 2, dec("40000000"), dec("50000000"), day1)
	require.NoError(t, err)

	// Fund holds 50M over 5000 units. Alice asks for 20M: 2000 units at
	// price 10000, but she only owns 1000.
	_, err = env.transactions.Withdraw(ctx, 1, dec("20000000"), dec("30000000"), day2)
	var insufficient *apperrors.ErrInsufficientUnits
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(1), insufficient.InvestorID)

	// The failed withdrawal left no trace.
	count, err := env.store.Repos().Transactions.Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	requireDecimalEqual(t, dec("1000"), tranches[0].Units)
}

func TestUpdateNAV_RaisesHWMMonotonically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)

	up, err := env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)
	require.Len(t, up.TrancheDeltas, 1)
	requireDecimalEqual(t, dec("10000"), *up.TrancheDeltas[0].HWMBefore)

	// A drop leaves the HWM where it was.
	down, err := env.transactions.UpdateNAV(ctx, dec("11000000"), day2)
	require.NoError(t, err)
	require.Empty(t, down.TrancheDeltas)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	requireDecimalEqual(t, dec("12000"), tranches[0].HWM)
}

func TestLatestNAV_AnyTransactionType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, ok, err := env.transactions.LatestNAV(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)
	_, err = env.transactions.Withdraw(ctx, 1, dec("1200000"), dec("10800000"), day2)
	require.NoError(t, err)

	nav, ok, err := env.transactions.LatestNAV(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimalEqual(t, dec("10800000"), nav)
}

func TestDeleteTransaction_ReversesDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	env.addInvestor(t, 2, "Bob", day1)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	bob, err := env.transactions.Deposit(ctx, 2, dec("5000000"), dec("15000000"), day1)
	require.NoError(t, err)

	require.NoError(t, env.transactions.DeleteTransaction(ctx, bob.ID))

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, tranches)

	_, err = env.store.Repos().Transactions.Get(ctx, bob.ID)
	require.True(t, apperrors.IsNotFound(err))

	// The freed id is reused so the sequence stays dense.
	next, err := env.transactions.Deposit(ctx, 2, dec("5000000"), dec("15000000"), day1)
	require.NoError(t, err)
	require.Equal(t, bob.ID, next.ID)
}

func TestDeleteTransaction_ReversesWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	wd, err := env.transactions.Withdraw(ctx, 1, dec("5000000"), dec("5000000"), day1)
	require.NoError(t, err)

	require.NoError(t, env.transactions.UndoTransaction(ctx, wd.ID))

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	requireDecimalEqual(t, dec("1000"), tranches[0].Units)
	requireDecimalEqual(t, dec("10000000"), tranches[0].InvestedValue)
}

func TestDeleteTransaction_RestoresRetiredTranche(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	wd, err := env.transactions.Withdraw(ctx, 1, dec("10000000"), dec("0"), day1)
	require.NoError(t, err)

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, tranches)

	require.NoError(t, env.transactions.UndoTransaction(ctx, wd.ID))

	tranches, err = env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tranches, 1)
	requireDecimalEqual(t, dec("1000"), tranches[0].Units)
	requireDecimalEqual(t, dec("10000"), tranches[0].OriginalEntryNAV)
}

func TestDeleteTransaction_ReversesNAVUpdateHWM(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	up, err := env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)

	require.NoError(t, env.transactions.DeleteTransaction(ctx, up.ID))

	tranches, err := env.store.Repos().Tranches.ListByInvestor(ctx, 1)
	require.NoError(t, err)
	requireDecimalEqual(t, dec("10000"), tranches[0].HWM)
}

func TestDeleteTransaction_OnlyInvestorLatest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	first, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.Deposit(ctx, 1, dec("5000000"), dec("15000000"), day1)
	require.NoError(t, err)

	err = env.transactions.DeleteTransaction(ctx, first.ID)
	var notReversible *apperrors.ErrNotReversible
	require.ErrorAs(t, err, &notReversible)
	require.Equal(t, first.ID, notReversible.TransactionID)
}

func TestFundManagerWithdraw_RequiresFeeUnits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)

	_, err = env.transactions.FundManagerWithdraw(ctx, dec("1000"), false, day1)
	var insufficient *apperrors.ErrInsufficientUnits
	require.ErrorAs(t, err, &insufficient)
}

func TestCommitHooksFireAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	var fired []int64
	env.transactions.RegisterCommitHook(func(txID int64) { fired = append(fired, txID) })

	tx, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	require.Equal(t, []int64{tx.ID}, fired)

	// A failed mutation does not fire the hook.
	_, err = env.transactions.Withdraw(ctx, 99, dec("1000000"), dec("9000000"), day1)
	require.True(t, apperrors.IsNotFound(err), "expected not found, got %v", err)
	require.Len(t, fired, 1)
}

func TestMutationsWriteAuditEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)

	entries, err := env.store.Repos().Audit.List(ctx, time.Time{}, 100)
	require.NoError(t, err)

	actions := make(map[string]int)
	for _, entry := range entries {
		actions[entry.Action]++
	}
	require.Equal(t, 1, actions[models.AuditActionDeposit])
	require.Equal(t, 1, actions[models.AuditActionNAVUpdate])
	require.Equal(t, 1, actions[models.AuditActionUpsertInvestor])
}

func TestTotalUnitsConservedByDepositWithdrawCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)
	env.addInvestor(t, 2, "Bob", day1)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.Deposit(ctx, 2, dec("4000000"), dec("14000000"), day1)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("15400000"), day2)
	require.NoError(t, err)
	_, err = env.transactions.Withdraw(ctx, 2, dec("2200000"), dec("13200000"), day3)
	require.NoError(t, err)

	tranches, err := env.store.Repos().Tranches.ListAll(ctx)
	require.NoError(t, err)
	total := models.TotalUnits(tranches)

	// 1000 + 400 deposited, 200 burned at price 11000.
	requireDecimalClose(t, dec("1200"), total, "0.0001")

	var sum decimal.Decimal
	txs, err := env.store.Repos().Transactions.List(ctx, nil)
	require.NoError(t, err)
	for _, tx := range txs {
		sum = sum.Add(tx.UnitsChange)
	}
	requireDecimalEqual(t, total, sum.Round(8))
}
