package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// MechanismRepository 产品机制仓库
type MechanismRepository struct {
	db *gorm.DB
}

// NewMechanismRepository 创建产品机制仓库
func NewMechanismRepository(db *gorm.DB) *MechanismRepository {
	return &MechanismRepository{db: db}
}

// FindByID 按ID查询机制（含产品行）
func (r *MechanismRepository) FindByID(ctx context.Context, id string) (*entity.ProductMechanism, error) {
	var mechanism entity.ProductMechanism
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&mechanism).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mechanism, nil
}

// List 列出全部机制（含产品行），按名称排序
func (r *MechanismRepository) List(ctx context.Context) ([]entity.ProductMechanism, error) {
	var mechanisms []entity.ProductMechanism
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("mechanism_name ASC").
		Find(&mechanisms).Error
	return mechanisms, err
}

// Create 创建机制及其产品行
func (r *MechanismRepository) Create(ctx context.Context, mechanism *entity.ProductMechanism) error {
	return r.db.WithContext(ctx).Create(mechanism).Error
}
