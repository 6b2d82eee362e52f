package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
)

// Transaction types recognized by the pipeline.
const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
	TxTypeNAVUpdate  = "nav_update"
	TxTypeFee        = "fee"
	TxTypeFMWithdraw = "fund_manager_withdrawal"
)

// TrancheDelta records how one tranche was touched by a transaction. The
// deltas carry enough information to reverse the mutation deterministically.
type TrancheDelta struct {
	TrancheID          string          `json:"tranche_id"`
	UnitsDelta         decimal.Decimal `json:"units_delta"`
	InvestedValueDelta decimal.Decimal `json:"invested_value_delta"`

	// HWMBefore is set when a NAV update raised this tranche's HWM.
	HWMBefore *decimal.Decimal `json:"hwm_before,omitempty"`

	// Created marks the tranche minted by this transaction.
	Created bool `json:"created,omitempty"`

	// Removed holds the full prior row when the transaction retired the
	// tranche, so undo can resurrect it verbatim.
	Removed *Tranche `json:"removed,omitempty"`
}

// TrancheDeltas is stored as a JSON attribute on the transaction row.
type TrancheDeltas []TrancheDelta

// Value implements driver.Valuer.
func (d TrancheDeltas) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tranche deltas: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *TrancheDeltas) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported tranche deltas column type %T", value)
	}
	if len(b) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(b, d)
}

// Transaction is one append-only ledger event. Amount is always non-negative
// with direction implied by Type; NAV is the fund-wide total NAV in effect
// after the event.
type Transaction struct {
	ID         int64     `json:"id" gorm:"primaryKey;column:id;autoIncrement:false"`
	InvestorID int64     `json:"investor_id" gorm:"column:investor_id;not null;index"`
	Date       time.Time `json:"date" gorm:"column:date;not null;index"`
	Type       string    `json:"type" gorm:"column:type;type:varchar(50);not null;index"`

	Amount      decimal.Decimal `json:"amount" gorm:"column:amount;type:decimal(15,2);not null"`
	NAV         decimal.Decimal `json:"nav" gorm:"column:nav;type:decimal(15,2);not null"`
	UnitsChange decimal.Decimal `json:"units_change" gorm:"column:units_change;type:decimal(20,8);not null"`

	// Per-tranche mutation metadata for the reverse path.
	TrancheDeltas TrancheDeltas `json:"tranche_deltas" gorm:"column:tranche_deltas;type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for the Transaction model
func (Transaction) TableName() string {
	return "fund_transactions"
}

// Validate validates the transaction data
func (t *Transaction) Validate() error {
	if t.Date.IsZero() {
		return &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}
	switch t.Type {
	case TxTypeDeposit, TxTypeWithdrawal, TxTypeNAVUpdate, TxTypeFee, TxTypeFMWithdraw:
	default:
		return &apperrors.ErrValidation{Field: "type", Message: "unknown transaction type " + t.Type}
	}
	if t.Amount.IsNegative() {
		return &apperrors.ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if t.NAV.IsNegative() {
		return &apperrors.ErrValidation{Field: "nav", Message: "must not be negative"}
	}
	if t.Type == TxTypeNAVUpdate && !t.UnitsChange.IsZero() {
		return &apperrors.ErrValidation{Field: "units_change", Message: "must be zero for NAV updates"}
	}
	return nil
}

// TransactionFilter represents filters for querying transactions
type TransactionFilter struct {
	InvestorID *int64
	Types      []string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}
