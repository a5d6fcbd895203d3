package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// StoreRepository 店铺仓库
type StoreRepository struct {
	db *gorm.DB
}

// NewStoreRepository 创建店铺仓库
func NewStoreRepository(db *gorm.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// FindByID 根据ID查找店铺
func (r *StoreRepository) FindByID(ctx context.Context, storeID string) (*entity.Store, error) {
	var store entity.Store
	err := r.db.WithContext(ctx).First(&store, "id = ?", storeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &store, nil
}

// List 按条件列出店铺
func (r *StoreRepository) List(ctx context.Context, storeType, region, ownerID string) ([]entity.Store, error) {
	var stores []entity.Store
	query := r.db.WithContext(ctx).Model(&entity.Store{})
	if storeType != "" {
		query = query.Where("store_type = ?", storeType)
	}
	if region != "" {
		query = query.Where("region = ?", region)
	}
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	err := query.Order("id ASC").Find(&stores).Error
	return stores, err
}

// GetAttribute 读取店铺属性值，属性不存在时返回空串
func (r *StoreRepository) GetAttribute(ctx context.Context, storeID, name string) (string, error) {
	var attr entity.StoreAttribute
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND name = ?", storeID, name).
		First(&attr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return attr.Value, nil
}

// SetAttribute 写入店铺属性（存在则更新）
func (r *StoreRepository) SetAttribute(ctx context.Context, attr *entity.StoreAttribute) error {
	var existing entity.StoreAttribute
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND name = ?", attr.StoreID, attr.Name).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(attr).Error
		}
		return err
	}
	existing.Value = attr.Value
	return r.db.WithContext(ctx).Save(&existing).Error
}

// ListRegions 列出全部地区（去重）
func (r *StoreRepository) ListRegions(ctx context.Context) ([]string, error) {
	var regions []string
	err := r.db.WithContext(ctx).
		Model(&entity.Store{}).
		Where("region <> ''").
		Distinct().
		Order("region ASC").
		Pluck("region", &regions).Error
	return regions, err
}

// ListStoreTypes 列出全部店铺类型（去重）
func (r *StoreRepository) ListStoreTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).
		Model(&entity.Store{}).
		Where("store_type <> ''").
		Distinct().
		Order("store_type ASC").
		Pluck("store_type", &types).Error
	return types, err
}
