package repository

import (
	"context"

	"github.com/fadilmartias/jobmatch/internal/model"
	"gorm.io/gorm"
)

type PipelineRunRepository struct {
	db *gorm.DB
}

func NewPipelineRunRepository(db *gorm.DB) *PipelineRunRepository {
	return &PipelineRunRepository{db}
}

func (r *PipelineRunRepository) CreateRun(ctx context.Context, run *model.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *PipelineRunRepository) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *PipelineRunRepository) FindRunByID(ctx context.Context, id string) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	return &run, err
}

func (r *PipelineRunRepository) ListRuns(ctx context.Context, kind string, limit int) ([]model.PipelineRun, error) {
	var runs []model.PipelineRun
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}
