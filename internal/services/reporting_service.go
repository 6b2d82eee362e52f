package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/pricing"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

type reportingService struct {
	store *repositories.Store
}

// NewReportingService creates the read-only projection layer.
func NewReportingService(store *repositories.Store) ReportingService {
	return &reportingService{store: store}
}

func (s *reportingService) InvestorBalance(ctx context.Context, investorID int64, totalNAV decimal.Decimal) (*models.InvestorBalance, error) {
	r := s.store.Repos()

	investor, err := r.Investors.Get(ctx, investorID)
	if err != nil {
		return nil, err
	}
	all, err := r.Tranches.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	price := pricing.PricePerUnit(totalNAV, models.TotalUnits(all))

	units := decimal.Zero
	trancheCount := 0
	for _, t := range all {
		if t.InvestorID != investorID {
			continue
		}
		units = units.Add(t.Units)
		trancheCount++
	}

	return &models.InvestorBalance{
		InvestorID:   investorID,
		Name:         investor.Name,
		Units:        units,
		PricePerUnit: price,
		CurrentValue: units.Mul(price).Round(2),
		TrancheCount: trancheCount,
	}, nil
}

// LifetimePerformance aggregates from the transaction log rather than the
// current tranches, so fully withdrawn positions still report their history.
func (s *reportingService) LifetimePerformance(ctx context.Context, investorID int64, totalNAV decimal.Decimal) (*models.LifetimePerformance, error) {
	balance, err := s.InvestorBalance(ctx, investorID, totalNAV)
	if err != nil {
		return nil, err
	}

	txs, err := s.store.Repos().Transactions.List(ctx, &models.TransactionFilter{InvestorID: &investorID})
	if err != nil {
		return nil, err
	}

	perf := &models.LifetimePerformance{
		InvestorID:       investorID,
		CurrentValue:     balance.CurrentValue,
		OriginalInvested: decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
		TotalFeesPaid:    decimal.Zero,
	}
	var firstDeposit *time.Time
	for _, tx := range txs {
		switch tx.Type {
		case models.TxTypeDeposit:
			perf.OriginalInvested = perf.OriginalInvested.Add(tx.Amount)
			if firstDeposit == nil || tx.Date.Before(*firstDeposit) {
				d := tx.Date
				firstDeposit = &d
			}
		case models.TxTypeWithdrawal, models.TxTypeFMWithdraw:
			perf.TotalWithdrawn = perf.TotalWithdrawn.Add(tx.Amount)
		case models.TxTypeFee:
			perf.TotalFeesPaid = perf.TotalFeesPaid.Add(tx.Amount)
		}
	}
	perf.FirstDepositDate = firstDeposit

	perf.GrossProfit = perf.CurrentValue.Add(perf.TotalWithdrawn).Sub(perf.OriginalInvested)
	perf.NetProfit = perf.GrossProfit.Sub(perf.TotalFeesPaid)
	if perf.OriginalInvested.Sign() > 0 {
		hundred := decimal.NewFromInt(100)
		perf.GrossReturnPct = perf.GrossProfit.Div(perf.OriginalInvested).Mul(hundred).Round(2)
		perf.NetReturnPct = perf.NetProfit.Div(perf.OriginalInvested).Mul(hundred).Round(2)
	}
	return perf, nil
}

func (s *reportingService) DashboardKPIs(ctx context.Context, totalNAV decimal.Decimal) (*models.DashboardKPIs, error) {
	r := s.store.Repos()

	tranches, err := r.Tranches.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	totalUnits := models.TotalUnits(tranches)
	price := pricing.PricePerUnit(totalNAV, totalUnits)

	investors, err := r.Investors.List(ctx, false)
	if err != nil {
		return nil, err
	}
	investorCount := 0
	for _, inv := range investors {
		if !inv.IsFundManager {
			investorCount++
		}
	}

	records, err := r.FeeRecords.List(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	totalFees := decimal.Zero
	for _, rec := range records {
		totalFees = totalFees.Add(rec.FeeAmount)
	}

	fmUnits := decimal.Zero
	for _, t := range tranches {
		if t.InvestorID == models.FundManagerID {
			fmUnits = fmUnits.Add(t.Units)
		}
	}

	kpis := &models.DashboardKPIs{
		TotalNAV:         totalNAV,
		TotalUnits:       totalUnits,
		PricePerUnit:     price,
		InvestorCount:    investorCount,
		TotalFeesPaid:    totalFees,
		FundManagerValue: fmUnits.Mul(price).Round(2),
	}
	if pricing.SeedPrice.Sign() > 0 {
		kpis.GrossReturnSinceInceptionPct = price.Sub(pricing.SeedPrice).
			Div(pricing.SeedPrice).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return kpis, nil
}

// NAVHistory returns every logged transaction's NAV in chronological order.
func (s *reportingService) NAVHistory(ctx context.Context) ([]*models.NAVPoint, error) {
	txs, err := s.store.Repos().Transactions.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	points := make([]*models.NAVPoint, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		points = append(points, &models.NAVPoint{
			Date: txs[i].Date,
			NAV:  txs[i].NAV,
			Type: txs[i].Type,
		})
	}
	return points, nil
}

func (s *reportingService) FeeHistory(ctx context.Context, period string, investorID *int64) ([]*models.FeeRecord, error) {
	return s.store.Repos().FeeRecords.List(ctx, period, investorID)
}
