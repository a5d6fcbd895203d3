package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// AssignmentRepository 审批人店铺分配仓库
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建审批人店铺分配仓库
func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID 根据ID查找分配（含店铺明细）
func (r *AssignmentRepository) FindByID(ctx context.Context, assignmentID string) (*entity.ApproverStoreAssignment, error) {
	var assignment entity.ApproverStoreAssignment
	err := r.db.WithContext(ctx).
		Preload("Stores").
		First(&assignment, "id = ?", assignmentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// List 按角色列出分配
func (r *AssignmentRepository) List(ctx context.Context, approverRole string) ([]entity.ApproverStoreAssignment, error) {
	var assignments []entity.ApproverStoreAssignment
	query := r.db.WithContext(ctx).Preload("Stores")
	if approverRole != "" {
		query = query.Where("approver_role = ?", approverRole)
	}
	err := query.Order("created_at DESC").Find(&assignments).Error
	return assignments, err
}

// FindApproverForStore 查找负责指定店铺的启用分配中的审批人
// 同一店铺被多个启用分配认领时，取审批人ID字典序最小者。
func (r *AssignmentRepository) FindApproverForStore(ctx context.Context, approverRole, storeID string) (string, error) {
	var approvers []string
	err := r.db.WithContext(ctx).
		Model(&entity.ApproverStoreAssignment{}).
		Joins("JOIN approver_store_assignment_items ON approver_store_assignment_items.assignment_id = approver_store_assignments.id").
		Where("approver_store_assignments.approver_role = ?", approverRole).
		Where("approver_store_assignments.is_active = ?", true).
		Where("approver_store_assignment_items.store_id = ?", storeID).
		Order("approver_store_assignments.approver ASC").
		Pluck("approver_store_assignments.approver", &approvers).Error
	if err != nil {
		return "", err
	}
	if len(approvers) == 0 {
		return "", nil
	}
	return approvers[0], nil
}

// FindDuplicateClaims 找出已被同角色其他启用分配认领的店铺
func (r *AssignmentRepository) FindDuplicateClaims(ctx context.Context, approverRole, excludeAssignmentID string, storeIDs []string) ([]string, error) {
	if len(storeIDs) == 0 {
		return nil, nil
	}
	var claimed []string
	query := r.db.WithContext(ctx).
		Model(&entity.ApproverStoreAssignmentItem{}).
		Joins("JOIN approver_store_assignments ON approver_store_assignments.id = approver_store_assignment_items.assignment_id").
		Where("approver_store_assignments.approver_role = ?", approverRole).
		Where("approver_store_assignments.is_active = ?", true).
		Where("approver_store_assignment_items.store_id IN ?", storeIDs)
	if excludeAssignmentID != "" {
		query = query.Where("approver_store_assignments.id <> ?", excludeAssignmentID)
	}
	err := query.Distinct().Pluck("approver_store_assignment_items.store_id", &claimed).Error
	return claimed, err
}

// Create 创建分配及店铺明细
func (r *AssignmentRepository) Create(ctx context.Context, assignment *entity.ApproverStoreAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// Update 更新分配（店铺明细整体替换）
func (r *AssignmentRepository) Update(ctx context.Context, assignment *entity.ApproverStoreAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", assignment.ID).Delete(&entity.ApproverStoreAssignmentItem{}).Error; err != nil {
			return err
		}
		return tx.Save(assignment).Error
	})
}

// Delete 删除分配及店铺明细
func (r *AssignmentRepository) Delete(ctx context.Context, assignmentID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", assignmentID).Delete(&entity.ApproverStoreAssignmentItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.ApproverStoreAssignment{}, "id = ?", assignmentID).Error
	})
}
