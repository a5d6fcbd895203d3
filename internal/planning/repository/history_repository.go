package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// HistoryRepository 审批历史仓库
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建审批历史仓库
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append 追加一条审批历史
func (r *HistoryRepository) Append(ctx context.Context, record *entity.ApprovalHistory) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByTaskStore 按时间升序列出某任务某店铺的审批历史
func (r *HistoryRepository) ListByTaskStore(ctx context.Context, taskID, storeID string) ([]entity.ApprovalHistory, error) {
	var records []entity.ApprovalHistory
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND store_id = ?", taskID, storeID).
		Order("action_time ASC").
		Find(&records).Error
	return records, err
}
