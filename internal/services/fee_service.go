package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/config"
	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/pricing"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

const daysPerYear = 365.25

type feeService struct {
	store  *repositories.Store
	cfg    *config.Config
	logger *zap.Logger
}

// NewFeeService creates the performance fee engine over the given store.
func NewFeeService(store *repositories.Store, cfg *config.Config, logger *zap.Logger) FeeService {
	return &feeService{store: store, cfg: cfg, logger: logger}
}

// trancheAssessment is one tranche's share of a fee run.
type trancheAssessment struct {
	tranche   *models.Tranche
	feeAmount decimal.Decimal
	feeUnits  decimal.Decimal
}

type feeComputation struct {
	preview     *models.FeePreview
	price       decimal.Decimal
	assessments map[int64][]trancheAssessment
}

// hurdlePrice compounds the entry price at the hurdle rate over the holding
// period. Only the growth factor passes through float64; the price itself
// stays decimal.
func (s *feeService) hurdlePrice(entryNAV decimal.Decimal, entryDate, endDate time.Time) decimal.Decimal {
	years := endDate.Sub(entryDate).Hours() / 24 / daysPerYear
	if years < 0 {
		years = 0
	}
	rate, _ := s.cfg.HurdleRate.Float64()
	factor := math.Pow(1+rate, years)
	return entryNAV.Mul(decimal.NewFromFloat(factor)).Round(pricing.PriceScale)
}

// confirmToken binds a preview to the ledger snapshot it was computed from:
// any committed transaction, minted unit or retired tranche in between
// changes the token and forces a fresh preview.
func confirmToken(endDate time.Time, totalNAV decimal.Decimal, latestTxID int64, totalUnits decimal.Decimal, trancheCount int) string {
	payload := fmt.Sprintf("%s|%s|%d|%s|%d",
		endDate.UTC().Format(time.RFC3339), totalNAV.String(),
		latestTxID, totalUnits.String(), trancheCount)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (s *feeService) compute(ctx context.Context, r *repositories.Repos, endDate time.Time, totalNAV decimal.Decimal) (*feeComputation, error) {
	tranches, err := r.Tranches.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	totalUnits := models.TotalUnits(tranches)
	price := pricing.PricePerUnit(totalNAV, totalUnits)

	byInvestor := make(map[int64][]*models.Tranche)
	for _, t := range tranches {
		if t.InvestorID == models.FundManagerID {
			continue
		}
		byInvestor[t.InvestorID] = append(byInvestor[t.InvestorID], t)
	}

	investorIDs := make([]int64, 0, len(byInvestor))
	for id := range byInvestor {
		investorIDs = append(investorIDs, id)
	}
	sort.Slice(investorIDs, func(i, j int) bool { return investorIDs[i] < investorIDs[j] })

	comp := &feeComputation{
		price:       price,
		assessments: make(map[int64][]trancheAssessment),
	}
	preview := &models.FeePreview{
		EndDate:        endDate,
		TotalNAV:       totalNAV,
		PricePerUnit:   price,
		TotalFeeAmount: decimal.Zero,
		TotalFeeUnits:  decimal.Zero,
	}

	for _, investorID := range investorIDs {
		investor, err := r.Investors.Get(ctx, investorID)
		if err != nil {
			return nil, err
		}

		row := models.FeePreviewRow{
			InvestorID: investorID,
			Name:       investor.Name,
			FeeAmount:  decimal.Zero,
			FeeUnits:   decimal.Zero,
		}
		weightedEntry := decimal.Zero

		for _, t := range byInvestor[investorID] {
			row.UnitsBefore = row.UnitsBefore.Add(t.Units)
			weightedEntry = weightedEntry.Add(t.Units.Mul(t.EntryNAV))

			threshold := s.hurdlePrice(t.EntryNAV, t.EntryDate, endDate)
			if t.HWM.GreaterThan(threshold) {
				threshold = t.HWM
			}
			if price.LessThanOrEqual(threshold) {
				continue
			}

			excess := price.Sub(threshold)
			feeAmount := excess.Mul(t.Units).Mul(s.cfg.FeeRate).Round(2)
			if feeAmount.Sign() <= 0 {
				continue
			}
			feeUnits := feeAmount.Div(price).Round(pricing.UnitScale)

			comp.assessments[investorID] = append(comp.assessments[investorID], trancheAssessment{
				tranche:   t,
				feeAmount: feeAmount,
				feeUnits:  feeUnits,
			})
			row.FeeAmount = row.FeeAmount.Add(feeAmount)
			row.FeeUnits = row.FeeUnits.Add(feeUnits)
		}

		row.UnitsAfter = row.UnitsBefore.Sub(row.FeeUnits).Round(pricing.UnitScale)
		if row.UnitsBefore.Sign() > 0 {
			avgEntry := weightedEntry.Div(row.UnitsBefore)
			if avgEntry.Sign() > 0 {
				row.PerformancePct = price.Sub(avgEntry).Div(avgEntry).Mul(decimal.NewFromInt(100)).Round(2)
			}
		}

		preview.Rows = append(preview.Rows, row)
		preview.TotalFeeAmount = preview.TotalFeeAmount.Add(row.FeeAmount)
		preview.TotalFeeUnits = preview.TotalFeeUnits.Add(row.FeeUnits)
	}

	latest, err := r.Transactions.Latest(ctx)
	if err != nil {
		return nil, err
	}
	var latestID int64
	if latest != nil {
		latestID = latest.ID
	}
	preview.ConfirmToken = confirmToken(endDate, totalNAV, latestID, totalUnits, len(tranches))

	comp.preview = preview
	return comp, nil
}

func (s *feeService) PreviewFees(ctx context.Context, endDate time.Time, totalNAV decimal.Decimal) (*models.FeePreview, error) {
	if totalNAV.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "total_nav", Message: "must be positive"}
	}
	if endDate.IsZero() {
		return nil, &apperrors.ErrValidation{Field: "end_date", Message: "is required"}
	}

	comp, err := s.compute(ctx, s.store.Repos(), endDate, totalNAV)
	if err != nil {
		return nil, err
	}
	return comp.preview, nil
}

func (s *feeService) CalculateInvestorFee(ctx context.Context, investorID int64, endDate time.Time, totalNAV decimal.Decimal) (*models.FeePreviewRow, error) {
	investor, err := s.store.Repos().Investors.Get(ctx, investorID)
	if err != nil {
		return nil, err
	}

	comp, err := s.compute(ctx, s.store.Repos(), endDate, totalNAV)
	if err != nil {
		return nil, err
	}
	for i := range comp.preview.Rows {
		if comp.preview.Rows[i].InvestorID == investorID {
			return &comp.preview.Rows[i], nil
		}
	}
	return &models.FeePreviewRow{
		InvestorID: investorID,
		Name:       investor.Name,
		FeeAmount:  decimal.Zero,
		FeeUnits:   decimal.Zero,
	}, nil
}

// ApplyFees recomputes the run inside the write transaction and refuses to
// proceed when the ledger moved since the preview the caller confirmed.
func (s *feeService) ApplyFees(ctx context.Context, period string, endDate time.Time, totalNAV decimal.Decimal, confirm string, ackRisk, ackBackup bool) ([]*models.FeeRecord, error) {
	if period == "" {
		return nil, &apperrors.ErrValidation{Field: "period", Message: "is required"}
	}
	if totalNAV.Sign() <= 0 {
		return nil, &apperrors.ErrValidation{Field: "total_nav", Message: "must be positive"}
	}
	if endDate.IsZero() {
		return nil, &apperrors.ErrValidation{Field: "end_date", Message: "is required"}
	}
	if s.cfg.FeatureFeeSafety && (!ackRisk || !ackBackup) {
		return nil, &apperrors.ErrPreconditionFailed{Message: "fee application requires explicit risk and backup acknowledgements"}
	}

	var records []*models.FeeRecord
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		existing, err := r.FeeRecords.List(ctx, period, nil)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &apperrors.ErrValidation{Field: "period", Message: "fees were already applied for this period"}
		}

		comp, err := s.compute(ctx, r, endDate, totalNAV)
		if err != nil {
			return err
		}
		if comp.preview.ConfirmToken != confirm {
			return &apperrors.ErrStaleConfirmation{Expected: comp.preview.ConfirmToken, Got: confirm}
		}

		for _, row := range comp.preview.Rows {
			if row.FeeAmount.Sign() <= 0 {
				continue
			}

			for _, assessment := range comp.assessments[row.InvestorID] {
				tranche := assessment.tranche
				tranche.ApplyFeeDebit(assessment.feeUnits, comp.price, assessment.feeAmount)
				if err := r.Tranches.Update(ctx, tranche); err != nil {
					return err
				}
				if _, err := r.Tranches.DeleteIfEmpty(ctx, tranche.TrancheID, s.cfg.DustUnits); err != nil {
					return err
				}
			}

			tx := &models.Transaction{
				InvestorID:  row.InvestorID,
				Date:        endDate,
				Type:        models.TxTypeFee,
				Amount:      row.FeeAmount,
				NAV:         totalNAV,
				UnitsChange: row.FeeUnits.Neg(),
			}
			if _, err := r.Transactions.Append(ctx, tx); err != nil {
				return err
			}

			record := &models.FeeRecord{
				Period:          period,
				InvestorID:      row.InvestorID,
				FeeAmount:       row.FeeAmount,
				FeeUnits:        row.FeeUnits,
				CalculationDate: endDate,
				UnitsBefore:     row.UnitsBefore,
				UnitsAfter:      row.UnitsAfter,
				NAVPerUnit:      comp.price,
				Description:     fmt.Sprintf("performance fee %s at price %s", period, comp.price),
			}
			if _, err := r.FeeRecords.Append(ctx, record); err != nil {
				return err
			}
			records = append(records, record)
		}

		if comp.preview.TotalFeeUnits.Sign() > 0 {
			if _, err := r.Investors.EnsureFundManager(ctx); err != nil {
				return err
			}
			mint := models.NewTranche(newTrancheID(), models.FundManagerID, endDate,
				comp.price, comp.preview.TotalFeeUnits, comp.preview.TotalFeeAmount)
			if err := r.Tranches.Create(ctx, mint); err != nil {
				return err
			}
		}

		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionApplyFees,
			Target: "period:" + period,
			Detail: fmt.Sprintf("applied %s fees (%s units) across %d investors at price %s",
				comp.preview.TotalFeeAmount, comp.preview.TotalFeeUnits, len(records), comp.price),
		})
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.FeeAmount)
	}
	s.logger.Info("fees applied",
		zap.String("period", period),
		zap.Int("investors_charged", len(records)),
		zap.String("total_fee_amount", total.String()))
	return records, nil
}
