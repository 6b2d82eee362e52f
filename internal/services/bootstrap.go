package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/config"
	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

// Bootstrap seeds an empty database from CSV dumps in the configured
// directory. It is a no-op when seeding is disabled, when the directory is
// missing, or when the database already holds investors.
func Bootstrap(ctx context.Context, store *repositories.Store, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.BootstrapFromCSV {
		return nil
	}

	existing, err := store.Repos().Investors.List(ctx, true)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("bootstrap skipped, database is not empty",
			zap.Int("investors", len(existing)))
		return nil
	}

	investors, err := loadInvestorsCSV(filepath.Join(cfg.BootstrapCSVDir, "investors.csv"))
	if err != nil {
		return err
	}
	if investors == nil {
		logger.Info("bootstrap skipped, no seed files found", zap.String("dir", cfg.BootstrapCSVDir))
		return nil
	}
	tranches, err := loadTranchesCSV(filepath.Join(cfg.BootstrapCSVDir, "tranches.csv"))
	if err != nil {
		return err
	}

	err = store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		for _, investor := range investors {
			if err := r.Investors.Upsert(ctx, investor); err != nil {
				return err
			}
		}
		for _, tranche := range tranches {
			if err := r.Tranches.Create(ctx, tranche); err != nil {
				return err
			}
		}
		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionUpsertInvestor,
			Target: "bootstrap",
			Detail: fmt.Sprintf("seeded %d investors and %d tranches from %s",
				len(investors), len(tranches), cfg.BootstrapCSVDir),
		})
	})
	if err != nil {
		return err
	}

	logger.Info("bootstrap completed",
		zap.Int("investors", len(investors)),
		zap.Int("tranches", len(tranches)))
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// loadInvestorsCSV parses rows of id,name,phone,email,address,join_date.
func loadInvestorsCSV(path string) ([]*models.Investor, error) {
	rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, err
	}

	investors := make([]*models.Investor, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("investors.csv row %d: expected 6 columns, got %d", i+2, len(row))
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("investors.csv row %d: invalid id: %w", i+2, err)
		}
		joinDate, err := time.Parse("2006-01-02", row[5])
		if err != nil {
			return nil, fmt.Errorf("investors.csv row %d: invalid join_date: %w", i+2, err)
		}
		investors = append(investors, &models.Investor{
			ID:            id,
			Name:          row[1],
			Phone:         row[2],
			Email:         row[3],
			Address:       row[4],
			JoinDate:      joinDate,
			IsFundManager: id == models.FundManagerID,
		})
	}
	return investors, nil
}

// loadTranchesCSV parses rows of
// tranche_id,investor_id,entry_date,entry_nav,units,invested_value,hwm.
func loadTranchesCSV(path string) ([]*models.Tranche, error) {
	rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, err
	}

	tranches := make([]*models.Tranche, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("tranches.csv row %d: expected 7 columns, got %d", i+2, len(row))
		}
		investorID, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tranches.csv row %d: invalid investor_id: %w", i+2, err)
		}
		entryDate, err := time.Parse("2006-01-02", row[2])
		if err != nil {
			return nil, fmt.Errorf("tranches.csv row %d: invalid entry_date: %w", i+2, err)
		}
		entryNAV, err := decimal.NewFromString(row[3])
		if err != nil {
			return nil, fmt.Errorf("tranches.csv row %d: invalid entry_nav: %w", i+2, err)
		}
		units, err := decimal.NewFromString(row[4])
		if err != nil {
			return nil, fmt.Errorf("tranches.csv row %d: invalid units: %w", i+2, err)
		}
		invested, err := decimal.NewFromString(row[5])
		if err != nil {
			return nil, fmt.Errorf("tranches.csv row %d: invalid invested_value: %w", i+2, err)
		}
		hwm, err := decimal.NewFromString(row[6])
		if err != nil {
			return nil, fmt.Errorf("tranches.csv row %d: invalid hwm: %w", i+2, err)
		}

		tranche := models.NewTranche(row[0], investorID, entryDate, entryNAV, units, invested)
		tranche.HWM = hwm
		tranches = append(tranches, tranche)
	}
	return tranches, nil
}
