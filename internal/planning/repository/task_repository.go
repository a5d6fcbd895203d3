package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// TaskRepository 计划任务仓库
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建计划任务仓库
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID 根据ID查找任务
func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*entity.PlanTask, error) {
	var task entity.PlanTask
	err := r.db.WithContext(ctx).First(&task, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// List 按条件列出任务
func (r *TaskRepository) List(ctx context.Context, taskType, status string) ([]entity.PlanTask, error) {
	var tasks []entity.PlanTask
	query := r.db.WithContext(ctx).Model(&entity.PlanTask{})
	if taskType != "" {
		query = query.Where("task_type = ?", taskType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// Create 创建任务
func (r *TaskRepository) Create(ctx context.Context, task *entity.PlanTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// Update 更新任务
func (r *TaskRepository) Update(ctx context.Context, task *entity.PlanTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// FindAssignment 查找任务-店铺分配记录
func (r *TaskRepository) FindAssignment(ctx context.Context, taskID, storeID string) (*entity.TaskStoreAssignment, error) {
	return FindAssignmentTx(r.db.WithContext(ctx), taskID, storeID)
}

// ListAssignmentsByTask 列出任务下所有店铺分配
func (r *TaskRepository) ListAssignmentsByTask(ctx context.Context, taskID string) ([]entity.TaskStoreAssignment, error) {
	var assignments []entity.TaskStoreAssignment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("store_id ASC").
		Find(&assignments).Error
	return assignments, err
}

// ListAssignmentsByStore 列出店铺参与的所有任务分配
func (r *TaskRepository) ListAssignmentsByStore(ctx context.Context, storeID string) ([]entity.TaskStoreAssignment, error) {
	var assignments []entity.TaskStoreAssignment
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("task_id ASC").
		Find(&assignments).Error
	return assignments, err
}

// ListAssignmentsByApprover 列出等待指定审批人处理的分配
func (r *TaskRepository) ListAssignmentsByApprover(ctx context.Context, approver string) ([]entity.TaskStoreAssignment, error) {
	var assignments []entity.TaskStoreAssignment
	err := r.db.WithContext(ctx).
		Where("current_approver = ? AND approval_status = ?", approver, entity.ApprovalStatusPending).
		Order("updated_at DESC").
		Find(&assignments).Error
	return assignments, err
}

// CreateAssignment 创建任务-店铺分配
func (r *TaskRepository) CreateAssignment(ctx context.Context, assignment *entity.TaskStoreAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// FindAssignmentTx 事务内查找分配记录
func FindAssignmentTx(tx *gorm.DB, taskID, storeID string) (*entity.TaskStoreAssignment, error) {
	var assignment entity.TaskStoreAssignment
	err := tx.Where("task_id = ? AND store_id = ?", taskID, storeID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// SaveAssignmentGuarded 带版本保护地保存分配记录
// 版本不匹配时返回 ErrStaleAssignment，调用方据此报并发冲突。
func SaveAssignmentGuarded(tx *gorm.DB, assignment *entity.TaskStoreAssignment) error {
	expected := assignment.Version
	assignment.Version = expected + 1
	result := tx.Model(&entity.TaskStoreAssignment{}).
		Where("id = ? AND version = ?", assignment.ID, expected).
		Updates(map[string]interface{}{
			"submission_status":        assignment.SubmissionStatus,
			"approval_status":          assignment.ApprovalStatus,
			"current_approval_step":    assignment.CurrentApprovalStep,
			"can_edit":                 assignment.CanEdit,
			"rejection_reason":         assignment.RejectionReason,
			"submitted_by":             assignment.SubmittedBy,
			"current_approver":         assignment.CurrentApprover,
			"workflow_id":              assignment.WorkflowID,
			"submission_time":          assignment.SubmissionTime,
			"approval_completion_time": assignment.ApprovalCompletionTime,
			"version":                  assignment.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleAssignment
	}
	return nil
}

// ErrStaleAssignment 并发写入导致的版本失配
var ErrStaleAssignment = errors.New("assignment version conflict")
