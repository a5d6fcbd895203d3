package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
)

// AccessService 编辑权限服务
type AccessService struct {
	db    *gorm.DB
	repos *repository.Repositories
}

// NewAccessService 创建编辑权限服务
func NewAccessService(db *gorm.DB, repos *repository.Repositories) *AccessService {
	return &AccessService{db: db, repos: repos}
}

// EditPermission 编辑权限检查结果
type EditPermission struct {
	CanEdit bool   `json:"can_edit"`
	Reason  string `json:"reason"`
}

// CheckCanEdit 检查用户能否编辑某任务某店铺的计划数据
// 店铺负责人或管理员才有编辑资格；提交进审批后锁定，退回后解锁。
func (s *AccessService) CheckCanEdit(ctx context.Context, actor entity.ActorContext, taskID, storeID string) (*EditPermission, error) {
	store, err := s.repos.Store.FindByID(ctx, storeID)
	if err != nil {
		return nil, apperr.Internal("查询店铺失败", err)
	}
	if store == nil {
		return nil, apperr.NotFound("店铺不存在")
	}

	if store.OwnerID != actor.UserID && !actor.IsAdmin() {
		return &EditPermission{CanEdit: false, Reason: "只有店铺负责人可以编辑"}, nil
	}

	assignment, err := s.repos.Task.FindAssignment(ctx, taskID, storeID)
	if err != nil {
		return nil, apperr.Internal("查询任务店铺记录失败", err)
	}
	if assignment == nil {
		return &EditPermission{CanEdit: true, Reason: "新建任务"}, nil
	}

	if assignment.SubmissionStatus == entity.SubmissionSubmitted && !assignment.CanEdit {
		return &EditPermission{CanEdit: false, Reason: "任务正在审批中，无法编辑"}, nil
	}

	return &EditPermission{CanEdit: true, Reason: ""}, nil
}

// RequireEdit 编辑门禁：无编辑权限时直接返回 PERMISSION_DENIED
func (s *AccessService) RequireEdit(ctx context.Context, actor entity.ActorContext, taskID, storeID string) error {
	perm, err := s.CheckCanEdit(ctx, actor, taskID, storeID)
	if err != nil {
		return err
	}
	if !perm.CanEdit {
		return apperr.PermissionDenied(perm.Reason)
	}
	return nil
}
