package services

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/config"
	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

type fundService struct {
	store  *repositories.Store
	cfg    *config.Config
	logger *zap.Logger
}

// NewFundService creates the investor management service.
func NewFundService(store *repositories.Store, cfg *config.Config, logger *zap.Logger) FundService {
	return &fundService{store: store, cfg: cfg, logger: logger}
}

func (s *fundService) AddInvestor(ctx context.Context, investor *models.Investor) (*models.Investor, error) {
	if investor == nil {
		return nil, &apperrors.ErrValidation{Field: "investor", Message: "is required"}
	}
	if investor.IsFundManager {
		return nil, &apperrors.ErrValidation{Field: "is_fund_manager", Message: "the fund manager account is created automatically"}
	}

	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		if investor.ID == 0 {
			id, err := r.Investors.NextID(ctx)
			if err != nil {
				return err
			}
			investor.ID = id
		}
		if err := investor.Validate(); err != nil {
			return err
		}
		if err := r.Investors.Upsert(ctx, investor); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionUpsertInvestor,
			Target: "investor:" + strconv.FormatInt(investor.ID, 10),
			Detail: fmt.Sprintf("added investor %q", investor.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("investor added", zap.Int64("investor_id", investor.ID), zap.String("name", investor.Name))
	return investor, nil
}

func (s *fundService) UpdateInvestor(ctx context.Context, investor *models.Investor) error {
	if investor == nil {
		return &apperrors.ErrValidation{Field: "investor", Message: "is required"}
	}
	if err := investor.Validate(); err != nil {
		return err
	}

	return s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		existing, err := r.Investors.Get(ctx, investor.ID)
		if err != nil {
			return err
		}
		if existing.IsFundManager != investor.IsFundManager {
			return &apperrors.ErrValidation{Field: "is_fund_manager", Message: "cannot be changed"}
		}
		if err := r.Investors.Upsert(ctx, investor); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionUpsertInvestor,
			Target: "investor:" + strconv.FormatInt(investor.ID, 10),
			Detail: fmt.Sprintf("updated investor %q", investor.Name),
		})
	})
}

// DisableInvestor retires an investor from new activity. Investors are never
// deleted once the transaction log references them.
func (s *fundService) DisableInvestor(ctx context.Context, id int64) error {
	return s.setDisabled(ctx, id, true)
}

func (s *fundService) EnableInvestor(ctx context.Context, id int64) error {
	return s.setDisabled(ctx, id, false)
}

func (s *fundService) setDisabled(ctx context.Context, id int64, disabled bool) error {
	if id == models.FundManagerID {
		return &apperrors.ErrValidation{Field: "investor_id", Message: "the fund manager account cannot be disabled"}
	}

	return s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		investor, err := r.Investors.Get(ctx, id)
		if err != nil {
			return err
		}
		if investor.Disabled == disabled {
			return nil
		}
		investor.Disabled = disabled
		if err := r.Investors.Upsert(ctx, investor); err != nil {
			return err
		}

		state := "enabled"
		if disabled {
			state = "disabled"
		}
		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionUpsertInvestor,
			Target: "investor:" + strconv.FormatInt(id, 10),
			Detail: fmt.Sprintf("investor %q %s", investor.Name, state),
		})
	})
}

func (s *fundService) GetInvestor(ctx context.Context, id int64) (*models.Investor, error) {
	return s.store.Repos().Investors.Get(ctx, id)
}

func (s *fundService) ListInvestors(ctx context.Context, includeDisabled bool) ([]*models.Investor, error) {
	return s.store.Repos().Investors.List(ctx, includeDisabled)
}

func (s *fundService) EnsureFundManager(ctx context.Context) (*models.Investor, error) {
	var fm *models.Investor
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		var err error
		fm, err = r.Investors.EnsureFundManager(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fm, nil
}
