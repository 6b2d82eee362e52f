package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfund-vn/fundcore/internal/models"
)

func TestInvestorBalance(t *testing.T) {
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

	balance, err := env.reports.InvestorBalance(ctx, 1, dec("15400000"))
	require.NoError(t, err)
	require.Equal(t, "Alice", balance.Name)
	requireDecimalEqual(t, dec("1000"), balance.Units)
	requireDecimalEqual(t, dec("11000"), balance.PricePerUnit)
	requireDecimalEqual(t, dec("11000000.00"), balance.CurrentValue)
	require.Equal(t, 1, balance.TrancheCount)
}

func TestLifetimePerformance_SurvivesFullExit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)
	_, err = env.transactions.Withdraw(ctx, 1, dec("12000000"), dec("0"), day2)
	require.NoError(t, err)

	perf, err := env.reports.LifetimePerformance(ctx, 1, dec("0"))
	require.NoError(t, err)
	requireDecimalEqual(t, dec("10000000"), perf.OriginalInvested)
	requireDecimalEqual(t, dec("12000000"), perf.TotalWithdrawn)
	requireDecimalEqual(t, dec("0"), perf.CurrentValue)
	requireDecimalEqual(t, dec("2000000"), perf.GrossProfit)
	requireDecimalEqual(t, dec("2000000"), perf.NetProfit)
	requireDecimalEqual(t, dec("20.00"), perf.GrossReturnPct)
	requireDecimalEqual(t, dec("20.00"), perf.NetReturnPct)
	require.NotNil(t, perf.FirstDepositDate)
	require.True(t, perf.FirstDepositDate.Equal(day0))
}

func TestLifetimePerformance_NetOfFees(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedFeeScenario(t, env)

	preview, err := env.fees.PreviewFees(ctx, feeEndDate, dec("13000000"))
	require.NoError(t, err)
	_, err = env.fees.ApplyFees(ctx, "2024", feeEndDate, dec("13000000"), preview.ConfirmToken, true, true)
	require.NoError(t, err)

	// After the fee debit Alice holds 984.61538462 units worth 12.8M at
	// price 13000. Gross counts the fee-reduced value against the original
	// cash; net subtracts the 200k fee on top.
	perf, err := env.reports.LifetimePerformance(ctx, 1, dec("13000000"))
	require.NoError(t, err)
	requireDecimalEqual(t, dec("10000000"), perf.OriginalInvested)
	requireDecimalEqual(t, dec("200000"), perf.TotalFeesPaid)
	requireDecimalEqual(t, dec("12800000.00"), perf.CurrentValue)
	requireDecimalEqual(t, dec("2800000.00"), perf.GrossProfit)
	requireDecimalEqual(t, dec("2600000.00"), perf.NetProfit)
	requireDecimalEqual(t, dec("28.00"), perf.GrossReturnPct)
	requireDecimalEqual(t, dec("26.00"), perf.NetReturnPct)
}

func TestDashboardKPIs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedFeeScenario(t, env)

	preview, err := env.fees.PreviewFees(ctx, feeEndDate, dec("13000000"))
	require.NoError(t, err)
	_, err = env.fees.ApplyFees(ctx, "2024", feeEndDate, dec("13000000"), preview.ConfirmToken, true, true)
	require.NoError(t, err)

	kpis, err := env.reports.DashboardKPIs(ctx, dec("13000000"))
	require.NoError(t, err)
	requireDecimalEqual(t, dec("1000"), kpis.TotalUnits)
	requireDecimalEqual(t, dec("13000"), kpis.PricePerUnit)
	require.Equal(t, 1, kpis.InvestorCount)
	requireDecimalEqual(t, dec("200000"), kpis.TotalFeesPaid)
	requireDecimalEqual(t, dec("200000.00"), kpis.FundManagerValue)
	requireDecimalEqual(t, dec("30.00"), kpis.GrossReturnSinceInceptionPct)
}

func TestNAVHistoryChronological(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Alice", day0)

	_, err := env.transactions.Deposit(ctx, 1, dec("10000000"), dec("10000000"), day0)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("12000000"), day1)
	require.NoError(t, err)
	_, err = env.transactions.UpdateNAV(ctx, dec("11000000"), day2)
	require.NoError(t, err)

	points, err := env.reports.NAVHistory(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)
	require.Equal(t, models.TxTypeDeposit, points[0].Type)
	requireDecimalEqual(t, dec("12000000"), points[1].NAV)
	requireDecimalEqual(t, dec("11000000"), points[2].NAV)
	require.True(t, points[0].Date.Before(points[2].Date))
}

func TestFeeHistoryFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedFeeScenario(t, env)

	preview, err := env.fees.PreviewFees(ctx, feeEndDate, dec("13000000"))
	require.NoError(t, err)
	_, err = env.fees.ApplyFees(ctx, "2024", feeEndDate, dec("13000000"), preview.ConfirmToken, true, true)
	require.NoError(t, err)

	records, err := env.reports.FeeHistory(ctx, "2024", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	other := int64(99)
	records, err = env.reports.FeeHistory(ctx, "2024", &other)
	require.NoError(t, err)
	require.Empty(t, records)
}
