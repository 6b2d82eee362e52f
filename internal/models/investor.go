package models

import (
	"time"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
)

// FundManagerID is the reserved investor id for the fund manager account.
const FundManagerID int64 = 0

// Investor represents a fund participant. The fund manager is a singleton
// investor with id 0 that receives fee units in lieu of cash.
type Investor struct {
	ID            int64     `json:"id" gorm:"primaryKey;column:id;autoIncrement:false"`
	Name          string    `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex"`
	Phone         string    `json:"phone" gorm:"column:phone;type:varchar(50)"`
	Email         string    `json:"email" gorm:"column:email;type:varchar(255)"`
	Address       string    `json:"address" gorm:"column:address;type:text"`
	JoinDate      time.Time `json:"join_date" gorm:"column:join_date;not null"`
	IsFundManager bool      `json:"is_fund_manager" gorm:"column:is_fund_manager;not null;default:false"`

	// Disabled soft-retires an investor; rows are never deleted once they
	// participate in a transaction.
	Disabled bool `json:"disabled" gorm:"column:disabled;not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for the Investor model
func (Investor) TableName() string {
	return "fund_investors"
}

// Validate validates the investor data
func (i *Investor) Validate() error {
	if i.ID < 0 {
		return &apperrors.ErrValidation{Field: "id", Message: "must not be negative"}
	}
	if i.Name == "" {
		return &apperrors.ErrValidation{Field: "name", Message: "is required"}
	}
	if i.JoinDate.IsZero() {
		return &apperrors.ErrValidation{Field: "join_date", Message: "is required"}
	}
	if i.IsFundManager && i.ID != FundManagerID {
		return &apperrors.ErrValidation{Field: "is_fund_manager", Message: "only investor 0 may be the fund manager"}
	}
	if !i.IsFundManager && i.ID == FundManagerID {
		return &apperrors.ErrValidation{Field: "is_fund_manager", Message: "investor 0 is reserved for the fund manager"}
	}
	return nil
}

// NewFundManager returns the singleton fund manager account.
func NewFundManager(joinDate time.Time) *Investor {
	return &Investor{
		ID:            FundManagerID,
		Name:          "Fund Manager",
		JoinDate:      joinDate,
		IsFundManager: true,
	}
}
