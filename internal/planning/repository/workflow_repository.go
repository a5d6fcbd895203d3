package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// WorkflowRepository 审批流程仓库
type WorkflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建审批流程仓库
func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// FindByID 根据ID查找流程（含步骤，按 step_order 升序）
func (r *WorkflowRepository) FindByID(ctx context.Context, workflowID string) (*entity.ApprovalWorkflow, error) {
	var workflow entity.ApprovalWorkflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		First(&workflow, "id = ?", workflowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workflow, nil
}

// FindApplicable 解析适用流程
// 先找 (task_type, store_type) 精确匹配的启用流程，再退到该任务类型的启用默认流程。
func (r *WorkflowRepository) FindApplicable(ctx context.Context, taskType, storeType string) (*entity.ApprovalWorkflow, error) {
	preload := func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order ASC")
	}

	if storeType != "" {
		var workflow entity.ApprovalWorkflow
		err := r.db.WithContext(ctx).
			Preload("Steps", preload).
			Where("task_type = ? AND store_type = ? AND is_active = ?", taskType, storeType, true).
			Order("updated_at DESC").
			First(&workflow).Error
		if err == nil {
			return &workflow, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var workflow entity.ApprovalWorkflow
	err := r.db.WithContext(ctx).
		Preload("Steps", preload).
		Where("task_type = ? AND is_default = ? AND is_active = ?", taskType, true, true).
		Order("updated_at DESC").
		First(&workflow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workflow, nil
}

// List 列出全部流程（含步骤）
func (r *WorkflowRepository) List(ctx context.Context) ([]entity.ApprovalWorkflow, error) {
	var workflows []entity.ApprovalWorkflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Order("created_at DESC").
		Find(&workflows).Error
	return workflows, err
}

// Create 创建流程及其步骤
func (r *WorkflowRepository) Create(ctx context.Context, workflow *entity.ApprovalWorkflow) error {
	return r.db.WithContext(ctx).Create(workflow).Error
}

// Update 更新流程及其步骤（步骤整体替换）
func (r *WorkflowRepository) Update(ctx context.Context, workflow *entity.ApprovalWorkflow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workflow_id = ?", workflow.ID).Delete(&entity.ApprovalStep{}).Error; err != nil {
			return err
		}
		return tx.Save(workflow).Error
	})
}

// Delete 删除流程及其步骤
func (r *WorkflowRepository) Delete(ctx context.Context, workflowID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workflow_id = ?", workflowID).Delete(&entity.ApprovalStep{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.ApprovalWorkflow{}, "id = ?", workflowID).Error
	})
}
