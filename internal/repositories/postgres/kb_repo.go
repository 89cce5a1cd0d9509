package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yoockh/voicedesk/internal/models"
)

type KBRepo interface {
	ListEnabled(ctx context.Context, limit int) ([]models.KBArticle, error)
}

type kbRepo struct {
	db *gorm.DB
}

func NewKBRepo(db *gorm.DB) KBRepo {
	return &kbRepo{db: db}
}

func (r *kbRepo) ListEnabled(ctx context.Context, limit int) ([]models.KBArticle, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []models.KBArticle
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
