package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// ProductRepository 产品仓库
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建产品仓库
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByCode 根据编码查找产品
func (r *ProductRepository) FindByCode(ctx context.Context, code string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).First(&product, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// FindByCodes 批量查找产品
func (r *ProductRepository) FindByCodes(ctx context.Context, codes []string) ([]entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&products).Error
	return products, err
}

// Search 按关键词与筛选条件分页搜索产品
func (r *ProductRepository) Search(ctx context.Context, keyword, brand, category string, page, pageSize int) ([]entity.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Product{})
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("code LIKE ? OR name1 LIKE ?", like, like)
	}
	if brand != "" {
		query = query.Where("brand = ?", brand)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []entity.Product
	err := query.
		Order("code ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error
	return products, total, err
}

// ListBrands 列出全部品牌（去重）
func (r *ProductRepository) ListBrands(ctx context.Context) ([]string, error) {
	var brands []string
	err := r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Where("brand <> ''").
		Distinct().
		Order("brand ASC").
		Pluck("brand", &brands).Error
	return brands, err
}

// ListCategories 列出全部品类（去重）
func (r *ProductRepository) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Where("category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}
