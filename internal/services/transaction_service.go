package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/config"
	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/pricing"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

type transactionService struct {
	store  *repositories.Store
	cfg    *config.Config
	logger *zap.Logger
	hooks  []func(txID int64)
}

// NewTransactionService creates the mutation pipeline over the given store.
func NewTransactionService(store *repositories.Store, cfg *config.Config, logger *zap.Logger) TransactionService {
	return &transactionService{store: store, cfg: cfg, logger: logger}
}

func (s *transactionService) RegisterCommitHook(hook func(txID int64)) {
	s.hooks = append(s.hooks, hook)
}

func (s *transactionService) notifyCommit(txID int64) {
	for _, hook := range s.hooks {
		hook(txID)
	}
}

func newTrancheID() string {
	return "tr_" + uuid.NewString()
}

// Deposit mints a new tranche for the investor. The price is the one the
// existing book supported, i.e. computed over the total NAV excluding the
// incoming cash.
func (s *transactionService) Deposit(ctx context.Context, investorID int64, amount, newTotalNAV decimal.Decimal, date time.Time) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if newTotalNAV.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "total_nav", Message: "must be positive"}
	}
	if date.IsZero() {
		return nil, &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}

	var committed *models.Transaction
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		investor, err := r.Investors.Get(ctx, investorID)
		if err != nil {
			return err
		}
		if investor.Disabled {
			return &apperrors.ErrValidation{Field: "investor_id", Message: "investor is disabled"}
		}

		tranches, err := r.Tranches.ListAll(ctx)
		if err != nil {
			return err
		}
		preUnits := models.TotalUnits(tranches)
		price := pricing.PricePerUnit(newTotalNAV.Sub(amount), preUnits)
		if price.Sign() <= 0 {
			// Units are outstanding but the book is worth nothing before the
			// cash arrives; no finite number of units prices this deposit.
			return &apperrors.ErrValidation{Field: "total_nav", Message: "pre-deposit net asset value must be positive while units are outstanding"}
		}
		minted := pricing.UnitsForCash(amount, price).Round(pricing.UnitScale)

		tranche := models.NewTranche(newTrancheID(), investorID, date, price, minted, amount)
		if err := r.Tranches.Create(ctx, tranche); err != nil {
			return err
		}

		tx := &models.Transaction{
			InvestorID:  investorID,
			Date:        date,
			Type:        models.TxTypeDeposit,
			Amount:      amount,
			NAV:         newTotalNAV,
			UnitsChange: minted,
			TrancheDeltas: models.TrancheDeltas{{
				TrancheID:          tranche.TrancheID,
				UnitsDelta:         minted,
				InvestedValueDelta: amount,
				Created:            true,
			}},
		}
		if _, err := r.Transactions.Append(ctx, tx); err != nil {
			return err
		}

		if err := r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionDeposit,
			Target: "transaction:" + strconv.FormatInt(tx.ID, 10),
			Detail: fmt.Sprintf("investor %d deposited %s at price %s (%s units)", investorID, amount, price, minted),
		}); err != nil {
			return err
		}

		committed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit committed",
		zap.Int64("transaction_id", committed.ID),
		zap.Int64("investor_id", investorID),
		zap.String("amount", amount.String()),
		zap.String("units", committed.UnitsChange.String()))
	s.notifyCommit(committed.ID)
	return committed, nil
}

// Withdraw burns units FIFO across the investor's tranches at the price the
// fund supported before the cash left.
func (s *transactionService) Withdraw(ctx context.Context, investorID int64, amount, newTotalNAV decimal.Decimal, date time.Time) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	// Zero is allowed: a full exit leaves the fund empty.
	if newTotalNAV.Sign() < 0 {
		return nil, &apperrors.ErrValidation{Field: "total_nav", Message: "must not be negative"}
	}
	if date.IsZero() {
		return nil, &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}

	var committed *models.Transaction
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		// Disabling an investor blocks new deposits only; a disabled
		// investor can still withdraw what they hold.
		if _, err := r.Investors.Get(ctx, investorID); err != nil {
			return err
		}
		tx, err := s.applyWithdrawal(ctx, r, investorID, amount, newTotalNAV, date, models.TxTypeWithdrawal)
		if err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal committed",
		zap.Int64("transaction_id", committed.ID),
		zap.Int64("investor_id", investorID),
		zap.String("amount", amount.String()),
		zap.String("units_burned", committed.UnitsChange.Neg().String()))
	s.notifyCommit(committed.ID)
	return committed, nil
}

// applyWithdrawal is the shared FIFO burn used by investor withdrawals and
// fund manager withdrawals. newTotalNAV is the total NAV after the cash left.
func (s *transactionService) applyWithdrawal(ctx context.Context, r *repositories.Repos, investorID int64, amount, newTotalNAV decimal.Decimal, date time.Time, txType string) (*models.Transaction, error) {
	allTranches, err := r.Tranches.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	preUnits := models.TotalUnits(allTranches)
	preNAV := newTotalNAV.Add(amount)
	price := pricing.PricePerUnit(preNAV, preUnits)
	unitsToBurn := pricing.UnitsForCash(amount, price).Round(pricing.UnitScale)

	owned, err := r.Tranches.ListByInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	models.SortFIFO(owned)

	ownedUnits := models.TotalUnits(owned)
	tolerance := s.cfg.DustUnits.Mul(decimal.NewFromInt(int64(len(owned) + 1)))
	if ownedUnits.Add(tolerance).LessThan(unitsToBurn) {
		return nil, &apperrors.ErrInsufficientUnits{
			InvestorID: investorID,
			Requested:  unitsToBurn.String(),
			Available:  ownedUnits.String(),
		}
	}

	var deltas models.TrancheDeltas
	remaining := unitsToBurn
	for _, tranche := range owned {
		if remaining.Sign() <= 0 {
			break
		}
		prior := *tranche
		consumed, investedDelta := tranche.Consume(remaining)
		if consumed.Sign() <= 0 {
			continue
		}
		remaining = remaining.Sub(consumed)

		delta := models.TrancheDelta{
			TrancheID:          tranche.TrancheID,
			UnitsDelta:         consumed.Neg(),
			InvestedValueDelta: investedDelta,
		}
		if tranche.IsDust(s.cfg.DustUnits) {
			delta.Removed = &prior
			if err := r.Tranches.Delete(ctx, tranche.TrancheID); err != nil {
				return nil, err
			}
		} else {
			if err := r.Tranches.Update(ctx, tranche); err != nil {
				return nil, err
			}
		}
		deltas = append(deltas, delta)
	}

	tx := &models.Transaction{
		InvestorID:    investorID,
		Date:          date,
		Type:          txType,
		Amount:        amount,
		NAV:           newTotalNAV,
		UnitsChange:   unitsToBurn.Neg(),
		TrancheDeltas: deltas,
	}
	if _, err := r.Transactions.Append(ctx, tx); err != nil {
		return nil, err
	}

	action := models.AuditActionWithdrawal
	if txType == models.TxTypeFMWithdraw {
		action = models.AuditActionFMWithdrawal
	}
	if err := r.Audit.Append(ctx, &models.AuditEntry{
		Actor:  "core",
		Action: action,
		Target: "transaction:" + strconv.FormatInt(tx.ID, 10),
		Detail: fmt.Sprintf("investor %d withdrew %s at price %s (%s units)", investorID, amount, price, unitsToBurn),
	}); err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateNAV revalues the fund: no cash moves and no units change, but every
// tranche's high-water mark ratchets up to the new price when it is higher.
func (s *transactionService) UpdateNAV(ctx context.Context, totalNAV decimal.Decimal, date time.Time) (*models.Transaction, error) {
	if totalNAV.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "total_nav", Message: "must be positive"}
	}
	if date.IsZero() {
		return nil, &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}

	var committed *models.Transaction
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		tranches, err := r.Tranches.ListAll(ctx)
		if err != nil {
			return err
		}
		price := pricing.PricePerUnit(totalNAV, models.TotalUnits(tranches))

		var deltas models.TrancheDeltas
		for _, tranche := range tranches {
			before := tranche.HWM
			if tranche.RaiseHWM(price) {
				if err := r.Tranches.Update(ctx, tranche); err != nil {
					return err
				}
				hwmBefore := before
				deltas = append(deltas, models.TrancheDelta{
					TrancheID: tranche.TrancheID,
					HWMBefore: &hwmBefore,
				})
			}
		}

		tx := &models.Transaction{
			InvestorID:    models.FundManagerID,
			Date:          date,
			Type:          models.TxTypeNAVUpdate,
			NAV:           totalNAV,
			TrancheDeltas: deltas,
		}
		if _, err := r.Transactions.Append(ctx, tx); err != nil {
			return err
		}

		if err := r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionNAVUpdate,
			Target: "transaction:" + strconv.FormatInt(tx.ID, 10),
			Detail: fmt.Sprintf("total NAV set to %s, price %s, %d HWM raises", totalNAV, price, len(deltas)),
		}); err != nil {
			return err
		}

		committed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("nav update committed",
		zap.Int64("transaction_id", committed.ID),
		zap.String("total_nav", totalNAV.String()))
	s.notifyCommit(committed.ID)
	return committed, nil
}

// FundManagerWithdraw pays out accumulated fee units from the fund manager
// account using the same FIFO burn as a regular withdrawal.
func (s *transactionService) FundManagerWithdraw(ctx context.Context, amount decimal.Decimal, full bool, date time.Time) (*models.Transaction, error) {
	if date.IsZero() {
		return nil, &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}
	if !full && amount.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "amount", Message: "must be positive for a partial withdrawal"}
	}

	var committed *models.Transaction
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		if _, err := r.Investors.EnsureFundManager(ctx); err != nil {
			return err
		}

		fmTranches, err := r.Tranches.ListByInvestor(ctx, models.FundManagerID)
		if err != nil {
			return err
		}
		fmUnits := models.TotalUnits(fmTranches)
		if fmUnits.LessThanOrEqual(s.cfg.DustUnits) {
			return &apperrors.ErrInsufficientUnits{
				InvestorID: models.FundManagerID,
				Requested:  amount.String(),
				Available:  fmUnits.String(),
			}
		}

		latest, err := r.Transactions.Latest(ctx)
		if err != nil {
			return err
		}
		if latest == nil {
			return &apperrors.ErrValidation{Field: "total_nav", Message: "no NAV on record"}
		}
		currentNAV := latest.NAV

		allTranches, err := r.Tranches.ListAll(ctx)
		if err != nil {
			return err
		}
		price := pricing.PricePerUnit(currentNAV, models.TotalUnits(allTranches))
		if price.Sign() <= 0 {
			return &apperrors.ErrValidation{Field: "total_nav", Message: "current net asset value must be positive while units are outstanding"}
		}

		cash := amount
		if full {
			cash = fmUnits.Mul(price).Round(2)
		}
		navAfter := currentNAV.Sub(cash)
		if navAfter.Sign() < 0 {
			return &apperrors.ErrValidation{Field: "amount", Message: "exceeds current total NAV"}
		}

		tx, err := s.applyWithdrawal(ctx, r, models.FundManagerID, cash, navAfter, date, models.TxTypeFMWithdraw)
		if err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fund manager withdrawal committed",
		zap.Int64("transaction_id", committed.ID),
		zap.Bool("full", full),
		zap.String("amount", committed.Amount.String()))
	s.notifyCommit(committed.ID)
	return committed, nil
}

// DeleteTransaction reverses the latest transaction of the affected investor
// using its recorded tranche deltas, then removes the row.
func (s *transactionService) DeleteTransaction(ctx context.Context, id int64) error {
	return s.remove(ctx, id, false)
}

// UndoTransaction is DeleteTransaction plus a compensating audit entry.
func (s *transactionService) UndoTransaction(ctx context.Context, id int64) error {
	return s.remove(ctx, id, true)
}

func (s *transactionService) remove(ctx context.Context, id int64, compensate bool) error {
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		tx, err := r.Transactions.Get(ctx, id)
		if err != nil {
			return err
		}

		latest, err := r.Transactions.LatestForInvestor(ctx, tx.InvestorID)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != tx.ID {
			return &apperrors.ErrNotReversible{TransactionID: id, Reason: "not the investor's latest transaction"}
		}

		switch tx.Type {
		case models.TxTypeFee:
			return &apperrors.ErrNotReversible{TransactionID: id, Reason: "fee transactions cannot be undone"}
		case models.TxTypeDeposit:
			if err := s.reverseDeposit(ctx, r, tx); err != nil {
				return err
			}
		case models.TxTypeWithdrawal, models.TxTypeFMWithdraw:
			if err := s.reverseWithdrawal(ctx, r, tx); err != nil {
				return err
			}
		case models.TxTypeNAVUpdate:
			if err := s.reverseNAVUpdate(ctx, r, tx); err != nil {
				return err
			}
		}

		if err := r.Transactions.Delete(ctx, tx.ID); err != nil {
			return err
		}

		if err := r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionDeleteTransaction,
			Target: "transaction:" + strconv.FormatInt(tx.ID, 10),
			Detail: fmt.Sprintf("reversed %s of investor %d", tx.Type, tx.InvestorID),
		}); err != nil {
			return err
		}
		if compensate {
			if err := r.Audit.Append(ctx, &models.AuditEntry{
				Actor:  "core",
				Action: models.AuditActionUndoTransaction,
				Target: "transaction:" + strconv.FormatInt(tx.ID, 10),
				Detail: "undo requested by caller",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("transaction reversed", zap.Int64("transaction_id", id), zap.Bool("undo", compensate))
	return nil
}

func (s *transactionService) reverseDeposit(ctx context.Context, r *repositories.Repos, tx *models.Transaction) error {
	for _, delta := range tx.TrancheDeltas {
		if !delta.Created {
			continue
		}
		if err := r.Tranches.Delete(ctx, delta.TrancheID); err != nil {
			if apperrors.IsNotFound(err) {
				return &apperrors.ErrNotReversible{TransactionID: tx.ID, Reason: "minted tranche was already mutated"}
			}
			return err
		}
	}
	return nil
}

func (s *transactionService) reverseWithdrawal(ctx context.Context, r *repositories.Repos, tx *models.Transaction) error {
	for _, delta := range tx.TrancheDeltas {
		if delta.Removed != nil {
			restored := *delta.Removed
			if err := r.Tranches.Create(ctx, &restored); err != nil {
				return err
			}
			continue
		}
		tranche, err := r.Tranches.Get(ctx, delta.TrancheID)
		if err != nil {
			return err
		}
		tranche.Units = tranche.Units.Sub(delta.UnitsDelta).Round(pricing.UnitScale)
		tranche.InvestedValue = tranche.InvestedValue.Sub(delta.InvestedValueDelta).Round(2)
		if err := r.Tranches.Update(ctx, tranche); err != nil {
			return err
		}
	}
	return nil
}

func (s *transactionService) reverseNAVUpdate(ctx context.Context, r *repositories.Repos, tx *models.Transaction) error {
	for _, delta := range tx.TrancheDeltas {
		if delta.HWMBefore == nil {
			continue
		}
		tranche, err := r.Tranches.Get(ctx, delta.TrancheID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// The tranche was retired after this NAV update; nothing
				// left to restore.
				continue
			}
			return err
		}
		tranche.HWM = *delta.HWMBefore
		if err := r.Tranches.Update(ctx, tranche); err != nil {
			return err
		}
	}
	return nil
}

func (s *transactionService) ListTransactions(ctx context.Context, filter *models.TransactionFilter) ([]*models.Transaction, error) {
	return s.store.Repos().Transactions.List(ctx, filter)
}

func (s *transactionService) LatestNAV(ctx context.Context) (decimal.Decimal, bool, error) {
	latest, err := s.store.Repos().Transactions.Latest(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	if latest == nil {
		return decimal.Zero, false, nil
	}
	return latest.NAV, true, nil
}
