package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
)

const filterOptionsCacheKey = "planning:filter_options"
const filterOptionsCacheTTL = 10 * time.Minute

// DashboardService 看板服务
type DashboardService struct {
	db    *gorm.DB
	repos *repository.Repositories
	redis *redis.Client
}

// NewDashboardService 创建看板服务
func NewDashboardService(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client) *DashboardService {
	return &DashboardService{db: db, repos: repos, redis: rdb}
}

// FilterOptions 前端筛选项集合
type FilterOptions struct {
	Brands     []string `json:"brands"`
	Categories []string `json:"categories"`
	Regions    []string `json:"regions"`
	StoreTypes []string `json:"store_types"`
}

// GetFilterOptions 获取筛选项（短暂缓存）
func (s *DashboardService) GetFilterOptions(ctx context.Context) (*FilterOptions, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, filterOptionsCacheKey).Result(); err == nil {
			var options FilterOptions
			if json.Unmarshal([]byte(cached), &options) == nil {
				return &options, nil
			}
		}
	}

	brands, err := s.repos.Product.ListBrands(ctx)
	if err != nil {
		return nil, apperr.Internal("查询品牌列表失败", err)
	}
	categories, err := s.repos.Product.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Internal("查询品类列表失败", err)
	}
	regions, err := s.repos.Store.ListRegions(ctx)
	if err != nil {
		return nil, apperr.Internal("查询地区列表失败", err)
	}
	storeTypes, err := s.repos.Store.ListStoreTypes(ctx)
	if err != nil {
		return nil, apperr.Internal("查询店铺类型列表失败", err)
	}

	options := &FilterOptions{
		Brands:     brands,
		Categories: categories,
		Regions:    regions,
		StoreTypes: storeTypes,
	}

	if s.redis != nil {
		if payload, err := json.Marshal(options); err == nil {
			s.redis.Set(ctx, filterOptionsCacheKey, payload, filterOptionsCacheTTL)
		}
	}
	return options, nil
}

// StoreStatusRow 任务下单个店铺的进度
type StoreStatusRow struct {
	StoreID          string `json:"store_id"`
	ShopName         string `json:"shop_name"`
	StoreType        string `json:"store_type"`
	Region           string `json:"region"`
	SubmissionStatus string `json:"submission_status"`
	ApprovalStatus   string `json:"approval_status"`
	CurrentStep      int    `json:"current_step"`
	CurrentApprover  string `json:"current_approver"`
	CanEdit          bool   `json:"can_edit"`
}

// TaskProgress 任务进度汇总
type TaskProgress struct {
	Task       *entity.PlanTask `json:"task"`
	Stores     []StoreStatusRow `json:"stores"`
	Total      int              `json:"total"`
	Submitted  int              `json:"submitted"`
	Approved   int              `json:"approved"`
	Rejected   int              `json:"rejected"`
	NotStarted int              `json:"not_started"`
}

// GetTaskProgress 获取任务下各店铺的提交与审批进度
func (s *DashboardService) GetTaskProgress(ctx context.Context, taskID string) (*TaskProgress, error) {
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("查询任务失败", err)
	}
	if task == nil {
		return nil, apperr.NotFound("任务不存在")
	}

	assignments, err := s.repos.Task.ListAssignmentsByTask(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("查询任务店铺分配失败", err)
	}

	storeIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		storeIDs = append(storeIDs, a.StoreID)
	}
	storeMap := make(map[string]entity.Store, len(storeIDs))
	if len(storeIDs) > 0 {
		var stores []entity.Store
		if err := s.db.WithContext(ctx).Where("id IN ?", storeIDs).Find(&stores).Error; err != nil {
			return nil, apperr.Internal("查询店铺失败", err)
		}
		for _, st := range stores {
			storeMap[st.ID] = st
		}
	}

	progress := &TaskProgress{Task: task, Total: len(assignments)}
	for _, a := range assignments {
		store := storeMap[a.StoreID]
		progress.Stores = append(progress.Stores, StoreStatusRow{
			StoreID:          a.StoreID,
			ShopName:         store.ShopName,
			StoreType:        store.StoreType,
			Region:           store.Region,
			SubmissionStatus: a.SubmissionStatus,
			ApprovalStatus:   a.ApprovalStatus,
			CurrentStep:      a.CurrentApprovalStep,
			CurrentApprover:  a.CurrentApprover,
			CanEdit:          a.CanEdit,
		})

		switch {
		case a.ApprovalStatus == entity.ApprovalStatusApproved:
			progress.Approved++
		case a.ApprovalStatus == entity.ApprovalStatusRejected:
			progress.Rejected++
		case a.SubmissionStatus == entity.SubmissionSubmitted:
			progress.Submitted++
		default:
			progress.NotStarted++
		}
	}
	return progress, nil
}

// ListTasks 列出计划任务
func (s *DashboardService) ListTasks(ctx context.Context, taskType, status string) ([]entity.PlanTask, error) {
	tasks, err := s.repos.Task.List(ctx, taskType, status)
	if err != nil {
		return nil, apperr.Internal("查询任务列表失败", err)
	}
	return tasks, nil
}

// ListStores 列出店铺
func (s *DashboardService) ListStores(ctx context.Context, storeType, region, ownerID string) ([]entity.Store, error) {
	stores, err := s.repos.Store.List(ctx, storeType, region, ownerID)
	if err != nil {
		return nil, apperr.Internal("查询店铺列表失败", err)
	}
	return stores, nil
}
