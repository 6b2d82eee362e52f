package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/pricing"
)

// Tranche is a lot created by a single deposit. It carries its own entry
// basis and high-water mark; withdrawals consume it FIFO and fee application
// debits units and resets the basis.
type Tranche struct {
	TrancheID  string `json:"tranche_id" gorm:"primaryKey;column:tranche_id;type:varchar(64)"`
	InvestorID int64  `json:"investor_id" gorm:"column:investor_id;not null;index"`

	// Current basis, reset by fee application.
	EntryDate time.Time       `json:"entry_date" gorm:"column:entry_date;not null"`
	EntryNAV  decimal.Decimal `json:"entry_nav" gorm:"column:entry_nav;type:decimal(20,6);not null"`

	// Immutable basis anchoring lifetime-return reporting.
	OriginalEntryDate time.Time       `json:"original_entry_date" gorm:"column:original_entry_date;not null;index"`
	OriginalEntryNAV  decimal.Decimal `json:"original_entry_nav" gorm:"column:original_entry_nav;type:decimal(20,6);not null"`

	Units                 decimal.Decimal `json:"units" gorm:"column:units;type:decimal(20,8);not null"`
	OriginalInvestedValue decimal.Decimal `json:"original_invested_value" gorm:"column:original_invested_value;type:decimal(15,2);not null"`
	InvestedValue         decimal.Decimal `json:"invested_value" gorm:"column:invested_value;type:decimal(15,2);not null"`

	HWM                decimal.Decimal `json:"hwm" gorm:"column:hwm;type:decimal(20,6);not null"`
	CumulativeFeesPaid decimal.Decimal `json:"cumulative_fees_paid" gorm:"column:cumulative_fees_paid;type:decimal(15,2);not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for the Tranche model
func (Tranche) TableName() string {
	return "fund_tranches"
}

// NewTranche creates the tranche minted by a deposit: entry and original
// basis both start at the deposit price.
func NewTranche(trancheID string, investorID int64, date time.Time, price, units, cash decimal.Decimal) *Tranche {
	return &Tranche{
		TrancheID:             trancheID,
		InvestorID:            investorID,
		EntryDate:             date,
		EntryNAV:              price,
		OriginalEntryDate:     date,
		OriginalEntryNAV:      price,
		Units:                 units.Round(pricing.UnitScale),
		OriginalInvestedValue: cash,
		InvestedValue:         cash,
		HWM:                   price,
	}
}

// Validate validates the tranche invariants.
func (t *Tranche) Validate() error {
	if t.TrancheID == "" {
		return &apperrors.ErrValidation{Field: "tranche_id", Message: "is required"}
	}
	if t.Units.IsNegative() {
		return &apperrors.ErrValidation{Field: "units", Message: "must not be negative"}
	}
	if t.InvestedValue.IsNegative() {
		return &apperrors.ErrValidation{Field: "invested_value", Message: "must not be negative"}
	}
	if t.OriginalInvestedValue.Sign() <= 0 {
		return &apperrors.ErrValidation{Field: "original_invested_value", Message: "must be positive"}
	}
	if t.EntryNAV.Sign() <= 0 {
		return &apperrors.ErrValidation{Field: "entry_nav", Message: "must be positive"}
	}
	if t.HWM.LessThan(t.OriginalEntryNAV) {
		return &apperrors.ErrValidation{Field: "hwm", Message: "must not fall below the original entry price"}
	}
	return nil
}

// Consume burns up to the requested units from the tranche and scales the
// current invested value proportionally. The original basis is preserved
// verbatim. Returns the units actually consumed and the invested-value delta
// (negative).
func (t *Tranche) Consume(units decimal.Decimal) (consumed, investedDelta decimal.Decimal) {
	consumed = units
	if consumed.GreaterThan(t.Units) {
		consumed = t.Units
	}
	if consumed.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}

	oldUnits := t.Units
	newUnits := oldUnits.Sub(consumed)
	newInvested := decimal.Zero
	if oldUnits.Sign() > 0 {
		newInvested = t.InvestedValue.Mul(newUnits).Div(oldUnits).Round(2)
	}
	investedDelta = newInvested.Sub(t.InvestedValue)

	t.Units = newUnits.Round(pricing.UnitScale)
	t.InvestedValue = newInvested
	return consumed, investedDelta
}

// ApplyFeeDebit charges a performance fee against the tranche: units are
// debited, entry basis and HWM reset to the calculation price, and the
// cumulative fee counter grows by the cash amount.
func (t *Tranche) ApplyFeeDebit(feeUnits, price, feeAmount decimal.Decimal) {
	t.Units = t.Units.Sub(feeUnits).Round(pricing.UnitScale)
	t.EntryNAV = price
	t.HWM = price
	t.InvestedValue = t.Units.Mul(price).Round(2)
	t.CumulativeFeesPaid = t.CumulativeFeesPaid.Add(feeAmount)
}

// RaiseHWM lifts the high-water mark to price if it is higher. The HWM never
// decreases on this path.
func (t *Tranche) RaiseHWM(price decimal.Decimal) bool {
	if price.GreaterThan(t.HWM) {
		t.HWM = price
		return true
	}
	return false
}

// IsDust reports whether the remaining units are below the retirement threshold.
func (t *Tranche) IsDust(dust decimal.Decimal) bool {
	return t.Units.LessThanOrEqual(dust)
}

// TotalUnits sums the circulating units across tranches.
func TotalUnits(tranches []*Tranche) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tranches {
		total = total.Add(t.Units)
	}
	return total
}

// SortFIFO orders tranches for withdrawal consumption: original entry date
// ascending, tranche id as the tie-break.
func SortFIFO(tranches []*Tranche) {
	sort.SliceStable(tranches, func(i, j int) bool {
		if tranches[i].OriginalEntryDate.Equal(tranches[j].OriginalEntryDate) {
			return tranches[i].TrancheID < tranches[j].TrancheID
		}
		return tranches[i].OriginalEntryDate.Before(tranches[j].OriginalEntryDate)
	})
}
