package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/backup"
	"github.com/openfund-vn/fundcore/internal/config"
	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
	"github.com/openfund-vn/fundcore/internal/repositories"
)

// RestoreConfirmPhrase must be supplied verbatim before a restore overwrites
// the live ledger.
const RestoreConfirmPhrase = "RESTORE"

type backupService struct {
	store  *repositories.Store
	cfg    *config.Config
	logger *zap.Logger
}

// NewBackupService creates the snapshot and restore service.
func NewBackupService(store *repositories.Store, cfg *config.Config, logger *zap.Logger) BackupService {
	return &backupService{store: store, cfg: cfg, logger: logger}
}

func newBackupID(now time.Time) string {
	return fmt.Sprintf("bk_%s_%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// Snapshot exports the four business tables under the write gate, so the
// archive captures a single consistent ledger state.
func (s *backupService) Snapshot(ctx context.Context, kind string) (*backup.Manifest, error) {
	switch kind {
	case backup.KindManual, backup.KindAuto, backup.KindSafety:
	default:
		return nil, &apperrors.ErrValidation{Field: "kind", Message: "must be manual, auto or safety"}
	}

	var manifest *backup.Manifest
	var archivePath string
	err := s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		investors, err := r.Investors.List(ctx, true)
		if err != nil {
			return err
		}
		tranches, err := r.Tranches.ListAll(ctx)
		if err != nil {
			return err
		}
		transactions, err := r.Transactions.List(ctx, nil)
		if err != nil {
			return err
		}
		feeRecords, err := r.FeeRecords.List(ctx, "", nil)
		if err != nil {
			return err
		}

		now := time.Now()
		archive, err := backup.New(newBackupID(now), kind, now, investors, tranches, transactions, feeRecords)
		if err != nil {
			return err
		}
		path, err := backup.WriteFile(s.cfg.BackupDir, archive)
		if err != nil {
			return err
		}
		archivePath = path
		manifest = &archive.Manifest

		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionBackup,
			Target: "backup:" + manifest.ID,
			Detail: fmt.Sprintf("%s snapshot (%d investors, %d tranches, %d transactions, %d fee records)",
				kind, manifest.RowCounts.Investors, manifest.RowCounts.Tranches,
				manifest.RowCounts.Transactions, manifest.RowCounts.FeeRecords),
		})
	})
	if err != nil {
		// The transaction rolled back; the archive must not outlive the
		// audit entry that records it.
		if archivePath != "" {
			if rmErr := os.Remove(archivePath); rmErr != nil {
				s.logger.Warn("failed to remove orphaned backup archive",
					zap.String("path", archivePath), zap.Error(rmErr))
			}
		}
		return nil, err
	}

	s.logger.Info("snapshot written",
		zap.String("backup_id", manifest.ID),
		zap.String("kind", kind),
		zap.String("dir", s.cfg.BackupDir))
	return manifest, nil
}

func (s *backupService) ListBackups(ctx context.Context) ([]backup.Manifest, error) {
	return backup.ListManifests(s.cfg.BackupDir)
}

// Restore replaces the live ledger with the archive contents. The archive is
// validated before anything is touched, and the whole swap happens in one
// write transaction.
func (s *backupService) Restore(ctx context.Context, backupID, confirmPhrase string, createSafetyBackup bool) error {
	if !s.cfg.FeatureBackupRestore {
		return &apperrors.ErrPreconditionFailed{Message: "backup restore is disabled by configuration"}
	}
	if confirmPhrase != RestoreConfirmPhrase {
		return &apperrors.ErrPreconditionFailed{Message: "restore requires the confirmation phrase " + RestoreConfirmPhrase}
	}

	archive, err := backup.ReadFile(s.cfg.BackupDir, strings.TrimSpace(backupID))
	if err != nil {
		return err
	}

	if createSafetyBackup {
		if _, err := s.Snapshot(ctx, backup.KindSafety); err != nil {
			return fmt.Errorf("failed to create safety backup: %w", err)
		}
	}

	err = s.store.WithWriteTxn(ctx, func(r *repositories.Repos) error {
		if err := r.Investors.ReplaceAll(ctx, archive.Investors); err != nil {
			return err
		}
		if err := r.Tranches.ReplaceAll(ctx, archive.Tranches); err != nil {
			return err
		}
		if err := r.Transactions.ReplaceAll(ctx, archive.Transactions); err != nil {
			return err
		}
		if err := r.FeeRecords.ReplaceAll(ctx, archive.FeeRecords); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &models.AuditEntry{
			Actor:  "core",
			Action: models.AuditActionRestore,
			Target: "backup:" + archive.Manifest.ID,
			Detail: fmt.Sprintf("restored %s snapshot from %s (%d investors, %d tranches, %d transactions, %d fee records)",
				archive.Manifest.Kind, archive.Manifest.CreatedAt.Format(time.RFC3339),
				archive.Manifest.RowCounts.Investors, archive.Manifest.RowCounts.Tranches,
				archive.Manifest.RowCounts.Transactions, archive.Manifest.RowCounts.FeeRecords),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Warn("ledger restored from backup",
		zap.String("backup_id", archive.Manifest.ID),
		zap.Time("backup_created_at", archive.Manifest.CreatedAt))
	return nil
}

// ScheduleAutoBackup runs a best-effort snapshot in the background. It never
// blocks the committing transaction and never surfaces an error to it.
func (s *backupService) ScheduleAutoBackup(txID int64) {
	if !s.cfg.AutoBackupOnNewTransaction {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		var err error
		for attempt := 1; attempt <= 3; attempt++ {
			if _, err = s.Snapshot(ctx, backup.KindAuto); err == nil {
				return
			}
			s.logger.Warn("auto backup attempt failed",
				zap.Int64("transaction_id", txID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		s.logger.Error("auto backup gave up", zap.Int64("transaction_id", txID), zap.Error(err))
	}()
}
