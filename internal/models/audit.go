package models

import "time"

// AuditEntry is one row of the append-only action log, co-committed with
// every mutating storage transaction.
type AuditEntry struct {
	ID         int64     `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	Timestamp  time.Time `json:"timestamp" gorm:"column:timestamp;not null;index"`
	Actor      string    `json:"actor" gorm:"column:actor;type:varchar(255);not null"`
	Action     string    `json:"action" gorm:"column:action;type:varchar(100);not null;index"`
	Target     string    `json:"target" gorm:"column:target;type:varchar(255)"`
	BeforeHash string    `json:"before_hash" gorm:"column:before_hash;type:varchar(64)"`
	AfterHash  string    `json:"after_hash" gorm:"column:after_hash;type:varchar(64)"`
	Detail     string    `json:"detail" gorm:"column:detail;type:text"`
}

// TableName returns the table name for the AuditEntry model
func (AuditEntry) TableName() string {
	return "audit_log"
}

// Audit actions emitted by the core.
const (
	AuditActionDeposit           = "deposit"
	AuditActionWithdrawal        = "withdrawal"
	AuditActionNAVUpdate         = "nav_update"
	AuditActionFMWithdrawal      = "fund_manager_withdrawal"
	AuditActionDeleteTransaction = "delete_transaction"
	AuditActionUndoTransaction   = "undo_transaction"
	AuditActionApplyFees         = "apply_fees"
	AuditActionBackup            = "backup"
	AuditActionRestore           = "restore"
	AuditActionUpsertInvestor    = "upsert_investor"
)
