package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository bound to db.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return &apperrors.ErrStorage{Op: "append audit entry", Err: err}
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	query = query.Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []*models.AuditEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, &apperrors.ErrStorage{Op: "list audit entries", Err: err}
	}
	return entries, nil
}
