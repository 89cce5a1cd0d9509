package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yoockh/voicedesk/internal/models"
	"github.com/yoockh/voicedesk/internal/utils"
)

type CallRepo interface {
	Insert(ctx context.Context, rec *models.CallRecord) error
	GetByCallSID(ctx context.Context, callSID string) (*models.CallRecord, error)
	ListRecent(ctx context.Context, limit int) ([]models.CallRecord, error)
	ListForwarded(ctx context.Context, limit int) ([]models.CallRecord, error)
}

type callRepo struct {
	db *gorm.DB
}

func NewCallRepo(db *gorm.DB) CallRepo {
	return &callRepo{db: db}
}

func (r *callRepo) Insert(ctx context.Context, rec *models.CallRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *callRepo) GetByCallSID(ctx context.Context, callSID string) (*models.CallRecord, error) {
	var row models.CallRecord
	err := r.db.WithContext(ctx).Where("call_sid = ?", callSID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *callRepo) ListRecent(ctx context.Context, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.CallRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *callRepo) ListForwarded(ctx context.Context, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.CallRecord
	err := r.db.WithContext(ctx).
		Where("forwarded = ?", true).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
