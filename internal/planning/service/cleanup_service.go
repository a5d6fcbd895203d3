package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
)

// CleanupService 数据清理服务
type CleanupService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewCleanupService 创建数据清理服务
func NewCleanupService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *CleanupService {
	return &CleanupService{db: db, repos: repos, logger: logger}
}

// CleanupResult 清理结果
type CleanupResult struct {
	Groups  int `json:"groups"`
	Deleted int `json:"deleted"`
}

// CleanupDuplicates 清理重复的商品计划记录
// 同一 (店铺, 任务, 产品, 月份) 存在多条时只保留最后更新的一条。
func (s *CleanupService) CleanupDuplicates(ctx context.Context, storeID, taskID string) (*CleanupResult, error) {
	groups, err := s.repos.Commodity.ListDuplicateGroups(ctx, storeID, taskID)
	if err != nil {
		return nil, apperr.Internal("查询重复记录失败", err)
	}

	result := &CleanupResult{Groups: len(groups)}
	if len(groups) == 0 {
		return result, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, group := range groups {
			// 首条为最后更新者，其余删除
			for _, rec := range group[1:] {
				if err := tx.Delete(&entity.CommoditySchedule{}, "id = ?", rec.ID).Error; err != nil {
					return err
				}
				result.Deleted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("清理重复记录失败", err)
	}

	if s.logger != nil {
		s.logger.Info("重复记录清理完成",
			zap.String("store_id", storeID),
			zap.String("task_id", taskID),
			zap.Int("groups", result.Groups),
			zap.Int("deleted", result.Deleted))
	}
	return result, nil
}
