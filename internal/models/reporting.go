package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestorBalance is the current position of one investor at a given NAV.
type InvestorBalance struct {
	InvestorID   int64           `json:"investor_id"`
	Name         string          `json:"name"`
	Units        decimal.Decimal `json:"units"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	CurrentValue decimal.Decimal `json:"current_value"`
	TrancheCount int             `json:"tranche_count"`
}

// LifetimePerformance reports gross and net return since first deposit.
// Returns are percentages and may use binary floats downstream; the money
// fields stay decimal.
type LifetimePerformance struct {
	InvestorID        int64           `json:"investor_id"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	OriginalInvested  decimal.Decimal `json:"original_invested"`
	TotalWithdrawn    decimal.Decimal `json:"total_withdrawn"`
	TotalFeesPaid     decimal.Decimal `json:"total_fees_paid"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	GrossReturnPct    decimal.Decimal `json:"gross_return_pct"`
	NetReturnPct      decimal.Decimal `json:"net_return_pct"`
	FirstDepositDate  *time.Time      `json:"first_deposit_date,omitempty"`
}

// DashboardKPIs are the fund-wide headline numbers.
type DashboardKPIs struct {
	TotalNAV             decimal.Decimal `json:"total_nav"`
	TotalUnits           decimal.Decimal `json:"total_units"`
	PricePerUnit         decimal.Decimal `json:"price_per_unit"`
	InvestorCount        int             `json:"investor_count"`
	TotalFeesPaid        decimal.Decimal `json:"total_fees_paid"`
	FundManagerValue     decimal.Decimal `json:"fund_manager_value"`
	GrossReturnSinceInceptionPct decimal.Decimal `json:"gross_return_since_inception_pct"`
}

// NAVPoint is one entry of the NAV history projection.
type NAVPoint struct {
	Date time.Time       `json:"date"`
	NAV  decimal.Decimal `json:"nav"`
	Type string          `json:"type"`
}

// FeePreviewRow is the per-investor slice of a fee preview.
type FeePreviewRow struct {
	InvestorID     int64           `json:"investor_id"`
	Name           string          `json:"name"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	FeeUnits       decimal.Decimal `json:"fee_units"`
	UnitsBefore    decimal.Decimal `json:"units_before"`
	UnitsAfter     decimal.Decimal `json:"units_after"`
	PerformancePct decimal.Decimal `json:"performance_pct"`
}

// FeePreview is the deterministic, read-only summary returned before a fee
// application. ConfirmToken binds the preview to the ledger snapshot it was
// computed from.
type FeePreview struct {
	EndDate        time.Time       `json:"end_date"`
	TotalNAV       decimal.Decimal `json:"total_nav"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Rows           []FeePreviewRow `json:"rows"`
	TotalFeeAmount decimal.Decimal `json:"total_fee_amount"`
	TotalFeeUnits  decimal.Decimal `json:"total_fee_units"`
	ConfirmToken   string          `json:"confirm_token"`
}
