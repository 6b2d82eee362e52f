package models

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
)

// FeeRecord is the immutable audit row written once per investor by a
// successful fee application.
type FeeRecord struct {
	ID         int64  `json:"id" gorm:"primaryKey;column:id;autoIncrement:false"`
	Period     string `json:"period" gorm:"column:period;type:varchar(50);not null;index"`
	InvestorID int64  `json:"investor_id" gorm:"column:investor_id;not null;index"`

	FeeAmount decimal.Decimal `json:"fee_amount" gorm:"column:fee_amount;type:decimal(15,2);not null"`
	FeeUnits  decimal.Decimal `json:"fee_units" gorm:"column:fee_units;type:decimal(20,8);not null"`

	CalculationDate time.Time       `json:"calculation_date" gorm:"column:calculation_date;not null"`
	UnitsBefore     decimal.Decimal `json:"units_before" gorm:"column:units_before;type:decimal(20,8);not null"`
	UnitsAfter      decimal.Decimal `json:"units_after" gorm:"column:units_after;type:decimal(20,8);not null"`
	NAVPerUnit      decimal.Decimal `json:"nav_per_unit" gorm:"column:nav_per_unit;type:decimal(20,6);not null"`
	Description     string          `json:"description" gorm:"column:description;type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for the FeeRecord model
func (FeeRecord) TableName() string {
	return "fund_fee_records"
}

// Validate validates the fee record data
func (f *FeeRecord) Validate() error {
	if f.Period == "" {
		return &apperrors.ErrValidation{Field: "period", Message: "is required"}
	}
	if f.FeeAmount.IsNegative() {
		return &apperrors.ErrValidation{Field: "fee_amount", Message: "must not be negative"}
	}
	if f.FeeUnits.IsNegative() {
		return &apperrors.ErrValidation{Field: "fee_units", Message: "must not be negative"}
	}
	if f.CalculationDate.IsZero() {
		return &apperrors.ErrValidation{Field: "calculation_date", Message: "is required"}
	}
	return nil
}
