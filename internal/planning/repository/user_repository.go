package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// UserRepository 用户仓库
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserRoles 获取用户的全部角色代码
func (r *UserRepository) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	var roles []string
	err := r.db.WithContext(ctx).
		Model(&entity.UserRole{}).
		Where("user_id = ?", userID).
		Pluck("role_code", &roles).Error
	return roles, err
}

// HasRole 用户是否拥有指定角色
func (r *UserRepository) HasRole(ctx context.Context, userID, roleCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.UserRole{}).
		Where("user_id = ? AND role_code = ?", userID, roleCode).
		Count(&count).Error
	return count > 0, err
}

// FirstUserWithRole 拥有指定角色的用户中ID字典序最小者
// 角色兜底解析审批人时使用，保证结果确定。
func (r *UserRepository) FirstUserWithRole(ctx context.Context, roleCode string) (string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&entity.UserRole{}).
		Where("role_code = ?", roleCode).
		Order("user_id ASC").
		Limit(1).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return "", err
	}
	if len(userIDs) == 0 {
		return "", nil
	}
	return userIDs[0], nil
}
