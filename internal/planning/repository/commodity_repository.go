package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// CommodityRepository 商品计划仓库
type CommodityRepository struct {
	db *gorm.DB
}

// NewCommodityRepository 创建商品计划仓库
func NewCommodityRepository(db *gorm.DB) *CommodityRepository {
	return &CommodityRepository{db: db}
}

// ListByStoreAndTask 列出店铺在任务下的全部计划记录
func (r *CommodityRepository) ListByStoreAndTask(ctx context.Context, storeID, taskID string) ([]entity.CommoditySchedule, error) {
	var records []entity.CommoditySchedule
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND task_id = ?", storeID, taskID).
		Order("code ASC, sub_date ASC").
		Find(&records).Error
	return records, err
}

// ListByStoresAndTask 列出多个店铺在任务下的计划记录
func (r *CommodityRepository) ListByStoresAndTask(ctx context.Context, storeIDs []string, taskID string) ([]entity.CommoditySchedule, error) {
	var records []entity.CommoditySchedule
	err := r.db.WithContext(ctx).
		Where("store_id IN ? AND task_id = ?", storeIDs, taskID).
		Order("store_id ASC, code ASC, sub_date ASC").
		Find(&records).Error
	return records, err
}

// FindByNaturalKey 按自然键查找记录（同键多条时取最后更新的一条）
func (r *CommodityRepository) FindByNaturalKey(ctx context.Context, storeID, taskID, code string, monthStart time.Time) (*entity.CommoditySchedule, error) {
	return FindByNaturalKeyTx(r.db.WithContext(ctx), storeID, taskID, code, monthStart)
}

// FindByNaturalKeyTx 事务内按自然键查找
func FindByNaturalKeyTx(tx *gorm.DB, storeID, taskID, code string, monthStart time.Time) (*entity.CommoditySchedule, error) {
	monthEnd := monthStart.AddDate(0, 1, 0)
	var record entity.CommoditySchedule
	err := tx.
		Where("store_id = ? AND task_id = ? AND code = ? AND sub_date >= ? AND sub_date < ?",
			storeID, taskID, code, monthStart, monthEnd).
		Order("updated_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 创建计划记录
func (r *CommodityRepository) Create(ctx context.Context, record *entity.CommoditySchedule) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update 更新计划记录
func (r *CommodityRepository) Update(ctx context.Context, record *entity.CommoditySchedule) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// FindByIDs 按主键批量查找
func (r *CommodityRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.CommoditySchedule, error) {
	var records []entity.CommoditySchedule
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error
	return records, err
}

// DeleteByIDs 按主键批量删除
func (r *CommodityRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entity.CommoditySchedule{})
	return result.RowsAffected, result.Error
}

// DeleteByCode 删除店铺任务下某产品编码的全部记录
func (r *CommodityRepository) DeleteByCode(ctx context.Context, storeID, taskID, code string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("store_id = ? AND task_id = ? AND code = ?", storeID, taskID, code).
		Delete(&entity.CommoditySchedule{})
	return result.RowsAffected, result.Error
}

// ListDuplicateGroups 找出同自然键多条的记录分组
// 返回每组的全部记录，按 updated_at 降序，首条为保留项。
func (r *CommodityRepository) ListDuplicateGroups(ctx context.Context, storeID, taskID string) ([][]entity.CommoditySchedule, error) {
	var records []entity.CommoditySchedule
	query := r.db.WithContext(ctx).Model(&entity.CommoditySchedule{})
	if storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}
	if err := query.Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	type key struct {
		storeID string
		taskID  string
		code    string
		month   string
	}
	groups := make(map[key][]entity.CommoditySchedule)
	order := make([]key, 0)
	for _, rec := range records {
		k := key{rec.StoreID, rec.TaskID, rec.Code, rec.MonthKey()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}

	var result [][]entity.CommoditySchedule
	for _, k := range order {
		if len(groups[k]) > 1 {
			result = append(result, groups[k])
		}
	}
	return result, nil
}
