package repository

import (
	"fmt"

	"gorm.io/gorm"

	"internationally/internal/model"
)

type SourceRepository struct {
	db *gorm.DB
}

func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(source *model.KnowledgeSource) error {
	if err := r.db.Create(source).Error; err != nil {
		return fmt.Errorf("create knowledge source failed: %w", err)
	}
	return nil
}

func (r *SourceRepository) List() ([]model.KnowledgeSource, error) {
	var sources []model.KnowledgeSource
	if err := r.db.Order("ingested_at DESC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("list knowledge sources failed: %w", err)
	}
	return sources, nil
}

// DeleteAll clears the registry, used together with an index reset.
func (r *SourceRepository) DeleteAll() error {
	if err := r.db.Where("1 = 1").Delete(&model.KnowledgeSource{}).Error; err != nil {
		return fmt.Errorf("clear knowledge sources failed: %w", err)
	}
	return nil
}
