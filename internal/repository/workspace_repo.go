package repository

import (
	"context"
	"errors"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"gorm.io/gorm"
)

type workspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

func (r *workspaceRepository) Create(ctx context.Context, workspace *model.Workspace) error {
	return r.db.WithContext(ctx).Create(workspace).Error
}

func (r *workspaceRepository) Get(ctx context.Context, id string) (*model.Workspace, error) {
	var workspace model.Workspace
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&workspace).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &workspace, nil
}

func (r *workspaceRepository) GetMany(ctx context.Context, ids []string) ([]model.Workspace, error) {
	if len(ids) == 0 {
		return []model.Workspace{}, nil
	}
	var found []model.Workspace
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]model.Workspace, len(found))
	for _, w := range found {
		byID[w.ID] = w
	}
	ordered := make([]model.Workspace, 0, len(ids))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			ordered = append(ordered, w)
		}
	}
	return ordered, nil
}

func (r *workspaceRepository) List(ctx context.Context) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&workspaces).Error
	return workspaces, err
}

func (r *workspaceRepository) Save(ctx context.Context, workspace *model.Workspace) error {
	return r.db.WithContext(ctx).Save(workspace).Error
}

func (r *workspaceRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Workspace{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
