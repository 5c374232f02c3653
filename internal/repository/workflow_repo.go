package repository

import (
	"context"
	"errors"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"gorm.io/gorm"
)

type workflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Create(ctx context.Context, workflow *model.Workflow) error {
	return r.db.WithContext(ctx).Create(workflow).Error
}

func (r *workflowRepository) Get(ctx context.Context, id string) (*model.Workflow, error) {
	var workflow model.Workflow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&workflow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &workflow, nil
}

func (r *workflowRepository) List(ctx context.Context) ([]model.Workflow, error) {
	var workflows []model.Workflow
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&workflows).Error
	return workflows, err
}

func (r *workflowRepository) Save(ctx context.Context, workflow *model.Workflow) error {
	return r.db.WithContext(ctx).Save(workflow).Error
}

func (r *workflowRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Workflow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
