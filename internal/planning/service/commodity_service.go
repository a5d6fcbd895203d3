package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
	"github.com/jack571754/product-sales-planning/internal/utils"
)

// 计划月份窗口长度（月）
const planningWindowMonths = 4

const productDialogCacheTTL = 5 * time.Minute

// CommodityService 商品计划服务
type CommodityService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	access *AccessService
	redis  *redis.Client
}

// NewCommodityService 创建商品计划服务
func NewCommodityService(db *gorm.DB, repos *repository.Repositories, access *AccessService, rdb *redis.Client) *CommodityService {
	return &CommodityService{db: db, repos: repos, access: access, redis: rdb}
}

// CommodityQuery 商品计划查询参数
type CommodityQuery struct {
	StoreID    string
	StoreIDs   []string
	TaskID     string
	Brand      string
	Category   string
	SearchTerm string
	Start      int
	PageLength int
	ViewMode   string
}

// SingleViewItem 单月视图行
type SingleViewItem struct {
	Name           string    `json:"name"`
	StoreID        string    `json:"store_id"`
	TaskID         string    `json:"task_id"`
	Code           string    `json:"code"`
	Quantity       int       `json:"quantity"`
	SubDate        time.Time `json:"sub_date"`
	Name1          string    `json:"name1"`
	Specifications string    `json:"specifications"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category"`
}

// MonthCell 多月视图单元格
type MonthCell struct {
	Quantity   int    `json:"quantity"`
	RecordName string `json:"record_name"`
}

// MultiViewItem 多月视图行（一个产品一行，各月份一列）
type MultiViewItem struct {
	Code           string               `json:"code"`
	Name1          string               `json:"name1"`
	Specifications string               `json:"specifications"`
	Brand          string               `json:"brand"`
	Category       string               `json:"category"`
	Months         map[string]MonthCell `json:"months"`
}

// StoreInfoView 响应中的店铺摘要
type StoreInfoView struct {
	Name      string `json:"name"`
	ShopName  string `json:"shop_name"`
	StoreType string `json:"store_type"`
	Region    string `json:"region"`
}

// TaskInfoView 响应中的任务摘要
type TaskInfoView struct {
	Name      string     `json:"name"`
	TaskName  string     `json:"task_name"`
	TaskType  string     `json:"task_type"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `json:"status"`
}

// ApprovalStatusView 响应中的审批状态摘要
type ApprovalStatusView struct {
	ApprovalStatus string `json:"approval_status"`
	Status         string `json:"status"`
}

// CommodityData 商品计划查询结果
type CommodityData struct {
	Data           interface{}         `json:"data"`
	Months         []string            `json:"months,omitempty"`
	TotalCount     int                 `json:"total_count"`
	ViewMode       string              `json:"view_mode"`
	StoreInfo      *StoreInfoView      `json:"store_info"`
	TaskInfo       *TaskInfoView       `json:"task_info"`
	CanEdit        bool                `json:"can_edit"`
	EditReason     string              `json:"edit_reason"`
	ApprovalStatus *ApprovalStatusView `json:"approval_status"`
}

// GetCommodityData 获取商品计划数据（单月/多月视图）
// 响应附带店铺/任务摘要、编辑权限结论和当前审批状态。
func (s *CommodityService) GetCommodityData(ctx context.Context, actor entity.ActorContext, q CommodityQuery) (*CommodityData, error) {
	data, task, err := s.buildView(ctx, q)
	if err != nil {
		return nil, err
	}

	data.CanEdit = true
	data.TaskInfo = &TaskInfoView{
		Name:      task.ID,
		TaskName:  task.TaskName,
		TaskType:  task.TaskType,
		StartDate: task.StartDate,
		EndDate:   task.EndDate,
		Status:    task.Status,
	}

	if q.StoreID == "" {
		return data, nil
	}
	store, err := s.repos.Store.FindByID(ctx, q.StoreID)
	if err != nil {
		return nil, apperr.Internal("查询店铺失败", err)
	}
	if store == nil {
		return data, nil
	}
	data.StoreInfo = &StoreInfoView{
		Name:      store.ID,
		ShopName:  store.ShopName,
		StoreType: store.StoreType,
		Region:    store.Region,
	}

	perm, err := s.access.CheckCanEdit(ctx, actor, q.TaskID, q.StoreID)
	if err != nil {
		return nil, err
	}
	data.CanEdit = perm.CanEdit
	data.EditReason = perm.Reason

	assignment, err := s.repos.Task.FindAssignment(ctx, q.TaskID, q.StoreID)
	if err != nil {
		return nil, apperr.Internal("查询任务店铺记录失败", err)
	}
	if assignment != nil {
		data.ApprovalStatus = &ApprovalStatusView{
			ApprovalStatus: assignment.ApprovalStatus,
			Status:         assignment.SubmissionStatus,
		}
	}
	return data, nil
}

// buildView 构建单月/多月视图数据，不含店铺任务附加信息
func (s *CommodityService) buildView(ctx context.Context, q CommodityQuery) (*CommodityData, *entity.PlanTask, error) {
	if q.TaskID == "" {
		return nil, nil, apperr.Validation("缺少任务ID")
	}
	task, err := s.repos.Task.FindByID(ctx, q.TaskID)
	if err != nil {
		return nil, nil, apperr.Internal("查询任务失败", err)
	}
	if task == nil {
		return nil, nil, apperr.NotFound("任务不存在")
	}

	windowMonths := utils.TaskMonths(q.TaskID, task.StartDate, planningWindowMonths, time.Now())
	records, err := s.loadWindowRecords(ctx, q, windowMonths)
	if err != nil {
		return nil, nil, err
	}

	var data *CommodityData
	if q.ViewMode == "multi" {
		data, err = s.multiMonthView(ctx, records, windowMonths, q)
	} else {
		data, err = s.singleMonthView(ctx, records, q)
	}
	if err != nil {
		return nil, nil, err
	}
	return data, task, nil
}

func (s *CommodityService) loadWindowRecords(ctx context.Context, q CommodityQuery, windowMonths []string) ([]entity.CommoditySchedule, error) {
	if len(windowMonths) == 0 {
		return nil, apperr.Validation("无法确定计划月份窗口")
	}
	windowStart, _ := utils.MonthFirstDay(windowMonths[0])
	windowEnd, _ := utils.MonthFirstDay(windowMonths[len(windowMonths)-1])
	windowEnd = windowEnd.AddDate(0, 1, 0)

	query := s.db.WithContext(ctx).
		Model(&entity.CommoditySchedule{}).
		Where("task_id = ?", q.TaskID).
		Where("sub_date >= ? AND sub_date < ?", windowStart, windowEnd)
	if len(q.StoreIDs) > 0 {
		query = query.Where("store_id IN ?", q.StoreIDs)
	} else if q.StoreID != "" {
		query = query.Where("store_id = ?", q.StoreID)
	}

	var records []entity.CommoditySchedule
	if err := query.Order("code ASC, sub_date ASC").Find(&records).Error; err != nil {
		return nil, apperr.Internal("查询商品计划数据失败", err)
	}
	return records, nil
}

func (s *CommodityService) singleMonthView(ctx context.Context, records []entity.CommoditySchedule, q CommodityQuery) (*CommodityData, error) {
	products, err := s.productInfoMap(ctx, records)
	if err != nil {
		return nil, err
	}

	filtered := make([]SingleViewItem, 0, len(records))
	for _, rec := range records {
		product, ok := products[rec.Code]
		if !ok {
			continue
		}
		if !matchesProductFilters(&product, q.Brand, q.Category, q.SearchTerm) {
			continue
		}
		filtered = append(filtered, SingleViewItem{
			Name:           rec.ID,
			StoreID:        rec.StoreID,
			TaskID:         rec.TaskID,
			Code:           rec.Code,
			Quantity:       rec.Quantity,
			SubDate:        rec.SubDate,
			Name1:          product.Name1,
			Specifications: product.Specifications,
			Brand:          product.Brand,
			Category:       product.Category,
		})
	}

	total := len(filtered)
	pageLength := q.PageLength
	if pageLength <= 0 {
		pageLength = 20
	}
	start := q.Start
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + pageLength
	if end > total {
		end = total
	}

	return &CommodityData{
		Data:       filtered[start:end],
		TotalCount: total,
		ViewMode:   "single",
	}, nil
}

func (s *CommodityService) multiMonthView(ctx context.Context, records []entity.CommoditySchedule, windowMonths []string, q CommodityQuery) (*CommodityData, error) {
	monthSet := make(map[string]bool, len(windowMonths))
	for _, m := range windowMonths {
		monthSet[m] = true
	}

	// 按 (产品, 月份) 聚合，同键多条记录以最后更新者为准
	type cellRecord struct {
		record    *entity.CommoditySchedule
		updatedAt time.Time
	}
	cells := make(map[string]map[string]cellRecord)
	codeOrder := make([]string, 0)
	for i := range records {
		rec := &records[i]
		month := rec.MonthKey()
		monthSet[month] = true
		if _, ok := cells[rec.Code]; !ok {
			cells[rec.Code] = make(map[string]cellRecord)
			codeOrder = append(codeOrder, rec.Code)
		}
		existing, ok := cells[rec.Code][month]
		if !ok || rec.UpdatedAt.After(existing.updatedAt) {
			cells[rec.Code][month] = cellRecord{record: rec, updatedAt: rec.UpdatedAt}
		}
	}

	products, err := s.productInfoMap(ctx, records)
	if err != nil {
		return nil, err
	}

	data := make([]MultiViewItem, 0, len(codeOrder))
	for _, code := range codeOrder {
		product, ok := products[code]
		if !ok {
			continue
		}
		if !matchesProductFilters(&product, q.Brand, q.Category, q.SearchTerm) {
			continue
		}
		months := make(map[string]MonthCell, len(cells[code]))
		for month, cell := range cells[code] {
			months[month] = MonthCell{
				Quantity:   cell.record.Quantity,
				RecordName: cell.record.ID,
			}
		}
		data = append(data, MultiViewItem{
			Code:           code,
			Name1:          product.Name1,
			Specifications: product.Specifications,
			Brand:          product.Brand,
			Category:       product.Category,
			Months:         months,
		})
	}

	sortedMonths := make([]string, 0, len(monthSet))
	for m := range monthSet {
		sortedMonths = append(sortedMonths, m)
	}
	sort.Strings(sortedMonths)

	return &CommodityData{
		Data:       data,
		Months:     sortedMonths,
		TotalCount: len(data),
		ViewMode:   "multi",
	}, nil
}

func (s *CommodityService) productInfoMap(ctx context.Context, records []entity.CommoditySchedule) (map[string]entity.Product, error) {
	codeSet := make(map[string]bool)
	codes := make([]string, 0)
	for _, rec := range records {
		if !codeSet[rec.Code] {
			codeSet[rec.Code] = true
			codes = append(codes, rec.Code)
		}
	}
	result := make(map[string]entity.Product, len(codes))
	if len(codes) == 0 {
		return result, nil
	}
	products, err := s.repos.Product.FindByCodes(ctx, codes)
	if err != nil {
		return nil, apperr.Internal("查询产品信息失败", err)
	}
	for _, p := range products {
		result[p.Code] = p
	}
	return result, nil
}

func matchesProductFilters(product *entity.Product, brand, category, searchTerm string) bool {
	if brand != "" && !strings.Contains(strings.ToLower(product.Brand), strings.ToLower(brand)) {
		return false
	}
	if category != "" && !strings.Contains(strings.ToLower(product.Category), strings.ToLower(category)) {
		return false
	}
	if searchTerm != "" {
		term := strings.ToLower(searchTerm)
		if !strings.Contains(strings.ToLower(product.Name1), term) &&
			!strings.Contains(strings.ToLower(product.Code), term) &&
			!strings.Contains(strings.ToLower(product.Brand), term) {
			return false
		}
	}
	return true
}

// BatchResult 批量操作结果
type BatchResult struct {
	Count   int      `json:"count"`
	Skipped int      `json:"skipped,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Msg     string   `json:"msg"`
}

// BulkInsert 批量添加商品计划
// 为每个产品在计划窗口内的每个月份创建零数量记录，已存在的跳过，可重复调用。
func (s *CommodityService) BulkInsert(ctx context.Context, actor entity.ActorContext, storeID, taskID string, codes []string) (*BatchResult, error) {
	if storeID == "" || taskID == "" {
		return nil, apperr.Validation("缺少店铺ID或任务ID")
	}
	if len(codes) == 0 {
		return nil, apperr.Validation("未选择任何商品")
	}

	store, err := s.repos.Store.FindByID(ctx, storeID)
	if err != nil {
		return nil, apperr.Internal("查询店铺失败", err)
	}
	if store == nil {
		return nil, apperr.NotFound("店铺不存在")
	}
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("查询任务失败", err)
	}
	if task == nil {
		return nil, apperr.NotFound("计划任务不存在")
	}

	if err := s.access.RequireEdit(ctx, actor, taskID, storeID); err != nil {
		return nil, err
	}

	windowMonths := utils.TaskMonths(taskID, task.StartDate, planningWindowMonths, time.Now())

	inserted := 0
	skipped := 0
	var errs []string

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, code := range codes {
			if code == "" {
				errs = append(errs, "无效的商品代码")
				continue
			}
			for _, month := range windowMonths {
				subDate, ok := utils.MonthFirstDay(month)
				if !ok {
					errs = append(errs, fmt.Sprintf("商品 %s: 无效的月份 %s", code, month))
					continue
				}
				existing, err := repository.FindByNaturalKeyTx(tx, storeID, taskID, code, subDate)
				if err != nil {
					errs = append(errs, fmt.Sprintf("商品 %s: %s", code, err.Error()))
					continue
				}
				if existing != nil {
					skipped++
					continue
				}
				now := time.Now()
				record := &entity.CommoditySchedule{
					ID:        uuid.New().String(),
					StoreID:   storeID,
					TaskID:    taskID,
					Code:      code,
					Quantity:  0,
					SubDate:   subDate,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := tx.Create(record).Error; err != nil {
					errs = append(errs, fmt.Sprintf("商品 %s: %s", code, err.Error()))
					continue
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("批量添加商品计划失败", err)
	}

	msg := fmt.Sprintf("成功添加 %d 条", inserted)
	if skipped > 0 {
		msg += fmt.Sprintf("，跳过 %d 条已存在记录", skipped)
	}
	return &BatchResult{Count: inserted, Skipped: skipped, Errors: capErrors(errs, 10), Msg: msg}, nil
}

// ApplyMechanisms 应用产品机制（把机制中的所有产品批量加入计划）
// 为机制中的每个产品在计划窗口内的每个月份创建记录，数量取机制行的默认数量，
// 已存在的跳过，可重复调用。
func (s *CommodityService) ApplyMechanisms(ctx context.Context, actor entity.ActorContext, storeID, taskID string, mechanismNames []string) (*BatchResult, error) {
	if storeID == "" || taskID == "" {
		return nil, apperr.Validation("缺少店铺ID或任务ID")
	}
	if len(mechanismNames) == 0 {
		return nil, apperr.Validation("未选择任何机制")
	}

	store, err := s.repos.Store.FindByID(ctx, storeID)
	if err != nil {
		return nil, apperr.Internal("查询店铺失败", err)
	}
	if store == nil {
		return nil, apperr.NotFound("店铺不存在")
	}
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("查询任务失败", err)
	}
	if task == nil {
		return nil, apperr.NotFound("计划任务不存在")
	}

	if err := s.access.RequireEdit(ctx, actor, taskID, storeID); err != nil {
		return nil, err
	}

	windowMonths := utils.TaskMonths(taskID, task.StartDate, planningWindowMonths, time.Now())

	inserted := 0
	skipped := 0
	var errs []string

	mechanisms := make([]*entity.ProductMechanism, 0, len(mechanismNames))
	for _, name := range mechanismNames {
		mechanism, err := s.repos.Mechanism.FindByID(ctx, name)
		if err != nil {
			return nil, apperr.Internal("查询产品机制失败", err)
		}
		if mechanism == nil {
			errs = append(errs, fmt.Sprintf("机制 %s 不存在", name))
			continue
		}
		mechanisms = append(mechanisms, mechanism)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, mechanism := range mechanisms {
			for _, item := range mechanism.Items {
				quantity := item.Quantity
				if quantity <= 0 {
					quantity = 1
				}
				for _, month := range windowMonths {
					subDate, ok := utils.MonthFirstDay(month)
					if !ok {
						errs = append(errs, fmt.Sprintf("机制[%s]-产品[%s]: 无效的月份 %s", mechanism.ID, item.Code, month))
						continue
					}
					existing, err := repository.FindByNaturalKeyTx(tx, storeID, taskID, item.Code, subDate)
					if err != nil {
						errs = append(errs, fmt.Sprintf("机制[%s]-产品[%s]: %s", mechanism.ID, item.Code, err.Error()))
						continue
					}
					if existing != nil {
						skipped++
						continue
					}
					now := time.Now()
					record := &entity.CommoditySchedule{
						ID:        uuid.New().String(),
						StoreID:   storeID,
						TaskID:    taskID,
						Code:      item.Code,
						Quantity:  quantity,
						SubDate:   subDate,
						CreatedAt: now,
						UpdatedAt: now,
					}
					if err := tx.Create(record).Error; err != nil {
						errs = append(errs, fmt.Sprintf("机制[%s]-产品[%s]: %s", mechanism.ID, item.Code, err.Error()))
						continue
					}
					inserted++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("应用产品机制失败", err)
	}

	msg := fmt.Sprintf("成功添加 %d 条", inserted)
	if skipped > 0 {
		msg += fmt.Sprintf("，跳过 %d 条已存在记录", skipped)
	}
	return &BatchResult{Count: inserted, Skipped: skipped, Errors: capErrors(errs, 10), Msg: msg}, nil
}

// ListMechanisms 机制选择列表（供前端弹窗使用）
func (s *CommodityService) ListMechanisms(ctx context.Context) ([]entity.ProductMechanism, error) {
	mechanisms, err := s.repos.Mechanism.List(ctx)
	if err != nil {
		return nil, apperr.Internal("查询产品机制列表失败", err)
	}
	return mechanisms, nil
}

// BatchUpdateQuantity 批量更新数量
// 逐条处理收集失败项，一次事务提交。
func (s *CommodityService) BatchUpdateQuantity(ctx context.Context, actor entity.ActorContext, names []string, quantity int) (*BatchResult, error) {
	if len(names) == 0 {
		return nil, apperr.Validation("未选择任何记录")
	}
	if quantity < 0 {
		return nil, apperr.Validation("数量不能为负数")
	}

	records, err := s.repos.Commodity.FindByIDs(ctx, names)
	if err != nil {
		return nil, apperr.Internal("查询商品计划记录失败", err)
	}
	recordMap := make(map[string]*entity.CommoditySchedule, len(records))
	for i := range records {
		recordMap[records[i].ID] = &records[i]
	}

	editable, err := s.editableScopes(ctx, actor, records)
	if err != nil {
		return nil, err
	}

	updated := 0
	var errs []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			record, ok := recordMap[name]
			if !ok {
				errs = append(errs, fmt.Sprintf("记录 %s: 不存在", name))
				continue
			}
			if reason, ok := editable[scopeKey(record.TaskID, record.StoreID)]; ok && reason != "" {
				errs = append(errs, fmt.Sprintf("记录 %s: %s", name, reason))
				continue
			}
			record.Quantity = quantity
			record.UpdatedAt = time.Now()
			if err := tx.Save(record).Error; err != nil {
				errs = append(errs, fmt.Sprintf("记录 %s: %s", name, err.Error()))
				continue
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("批量更新数量失败", err)
	}

	msg := fmt.Sprintf("成功修改 %d 条记录", updated)
	if len(errs) > 0 {
		msg += fmt.Sprintf("，%d 条失败", len(errs))
	}
	return &BatchResult{Count: updated, Errors: capErrors(errs, 10), Msg: msg}, nil
}

// BatchDelete 批量删除记录
func (s *CommodityService) BatchDelete(ctx context.Context, actor entity.ActorContext, names []string) (*BatchResult, error) {
	if len(names) == 0 {
		return nil, apperr.Validation("未选择任何记录")
	}

	records, err := s.repos.Commodity.FindByIDs(ctx, names)
	if err != nil {
		return nil, apperr.Internal("查询商品计划记录失败", err)
	}
	recordMap := make(map[string]*entity.CommoditySchedule, len(records))
	for i := range records {
		recordMap[records[i].ID] = &records[i]
	}

	editable, err := s.editableScopes(ctx, actor, records)
	if err != nil {
		return nil, err
	}

	deleted := 0
	var errs []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			record, ok := recordMap[name]
			if !ok {
				errs = append(errs, fmt.Sprintf("记录 %s: 不存在", name))
				continue
			}
			if reason, ok := editable[scopeKey(record.TaskID, record.StoreID)]; ok && reason != "" {
				errs = append(errs, fmt.Sprintf("记录 %s: %s", name, reason))
				continue
			}
			if err := tx.Delete(&entity.CommoditySchedule{}, "id = ?", name).Error; err != nil {
				errs = append(errs, fmt.Sprintf("记录 %s: %s", name, err.Error()))
				continue
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("批量删除失败", err)
	}

	msg := fmt.Sprintf("成功删除 %d 条记录", deleted)
	if len(errs) > 0 {
		msg += fmt.Sprintf("，%d 条失败", len(errs))
	}
	return &BatchResult{Count: deleted, Errors: capErrors(errs, 10), Msg: msg}, nil
}

// BatchDeleteByCodes 按产品编码批量删除店铺任务下的记录
func (s *CommodityService) BatchDeleteByCodes(ctx context.Context, actor entity.ActorContext, storeID, taskID string, codes []string) (*BatchResult, error) {
	if storeID == "" || taskID == "" {
		return nil, apperr.Validation("缺少店铺ID或任务ID")
	}
	if len(codes) == 0 {
		return nil, apperr.Validation("未选择任何商品")
	}
	if err := s.access.RequireEdit(ctx, actor, taskID, storeID); err != nil {
		return nil, err
	}

	deleted := 0
	var errs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, code := range codes {
			if code == "" {
				errs = append(errs, "无效的商品代码")
				continue
			}
			result := tx.Where("store_id = ? AND task_id = ? AND code = ?", storeID, taskID, code).
				Delete(&entity.CommoditySchedule{})
			if result.Error != nil {
				errs = append(errs, fmt.Sprintf("商品 %s: %s", code, result.Error.Error()))
				continue
			}
			deleted += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("批量删除失败", err)
	}

	msg := fmt.Sprintf("成功删除 %d 条记录", deleted)
	if len(errs) > 0 {
		msg += fmt.Sprintf("，%d 项失败", len(errs))
	}
	return &BatchResult{Count: deleted, Errors: capErrors(errs, 10), Msg: msg}, nil
}

// UpdateMonthQuantity 更新指定产品某月份的计划数量（不存在则创建）
func (s *CommodityService) UpdateMonthQuantity(ctx context.Context, actor entity.ActorContext, storeID, taskID, code, month string, quantity int) error {
	if storeID == "" || taskID == "" || code == "" || month == "" {
		return apperr.Validation("缺少必要参数")
	}
	if quantity < 0 {
		return apperr.Validation("数量不能为负数")
	}
	subDate, ok := utils.MonthFirstDay(month)
	if !ok {
		return apperr.Validation("无效的月份格式，应为 YYYY-MM")
	}
	if err := s.access.RequireEdit(ctx, actor, taskID, storeID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := upsertMonthQuantityTx(tx, storeID, taskID, code, subDate, quantity)
		return err
	})
	if err != nil {
		return apperr.Internal("保存月份数量失败", err)
	}
	return nil
}

// MonthQuantityUpdate 月份数量更新项
type MonthQuantityUpdate struct {
	Code     string `json:"code"`
	Month    string `json:"month"`
	Quantity int    `json:"quantity"`
}

// BatchUpdateMonthQuantities 批量更新多个产品的月份数量
// 逐项处理收集失败项，一次事务提交。
func (s *CommodityService) BatchUpdateMonthQuantities(ctx context.Context, actor entity.ActorContext, storeID, taskID string, updates []MonthQuantityUpdate) (*BatchResult, error) {
	if storeID == "" || taskID == "" {
		return nil, apperr.Validation("缺少店铺ID或任务ID")
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("更新数据列表为空")
	}
	if err := s.access.RequireEdit(ctx, actor, taskID, storeID); err != nil {
		return nil, err
	}

	success := 0
	var errs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, upd := range updates {
			if upd.Code == "" || upd.Month == "" {
				errs = append(errs, fmt.Sprintf("第 %d 项失败: 缺少商品编码或月份", idx+1))
				continue
			}
			if upd.Quantity < 0 {
				errs = append(errs, fmt.Sprintf("第 %d 项失败: 数量不能为负数", idx+1))
				continue
			}
			subDate, ok := utils.MonthFirstDay(upd.Month)
			if !ok {
				errs = append(errs, fmt.Sprintf("第 %d 项失败: 无效的月份格式", idx+1))
				continue
			}
			if _, err := upsertMonthQuantityTx(tx, storeID, taskID, upd.Code, subDate, upd.Quantity); err != nil {
				errs = append(errs, fmt.Sprintf("第 %d 项失败: %s", idx+1, err.Error()))
				continue
			}
			success++
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("批量更新月份数量失败", err)
	}

	return &BatchResult{
		Count:  success,
		Errors: capErrors(errs, 20),
		Msg:    fmt.Sprintf("批量保存完成，成功 %d 条", success),
	}, nil
}

// upsertMonthQuantityTx 按自然键保存月份数量，返回是否新建了记录
func upsertMonthQuantityTx(tx *gorm.DB, storeID, taskID, code string, subDate time.Time, quantity int) (bool, error) {
	existing, err := repository.FindByNaturalKeyTx(tx, storeID, taskID, code, subDate)
	if err != nil {
		return false, err
	}
	now := time.Now()
	if existing != nil {
		existing.Quantity = quantity
		existing.UpdatedAt = now
		return false, tx.Save(existing).Error
	}
	return true, tx.Create(&entity.CommoditySchedule{
		ID:        uuid.New().String(),
		StoreID:   storeID,
		TaskID:    taskID,
		Code:      code,
		Quantity:  quantity,
		SubDate:   subDate,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

// ProductDialogList 商品选择列表（供前端弹窗使用），结果短暂缓存
func (s *CommodityService) ProductDialogList(ctx context.Context, keyword, brand, category string, limit int) ([]entity.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	cacheKey := fmt.Sprintf("planning:products:%s:%s:%s:%d", keyword, brand, category, limit)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var products []entity.Product
			if json.Unmarshal([]byte(cached), &products) == nil {
				return products, nil
			}
		}
	}

	products, _, err := s.repos.Product.Search(ctx, keyword, brand, category, 1, limit)
	if err != nil {
		return nil, apperr.Internal("查询商品列表失败", err)
	}

	if s.redis != nil {
		if payload, err := json.Marshal(products); err == nil {
			s.redis.Set(ctx, cacheKey, payload, productDialogCacheTTL)
		}
	}
	return products, nil
}

// editableScopes 为记录涉及的每个 (task, store) 组合做一次编辑权限检查
// 返回 map：键为组合，值为不可编辑原因（可编辑时为空串）。
func (s *CommodityService) editableScopes(ctx context.Context, actor entity.ActorContext, records []entity.CommoditySchedule) (map[string]string, error) {
	result := make(map[string]string)
	for _, rec := range records {
		key := scopeKey(rec.TaskID, rec.StoreID)
		if _, ok := result[key]; ok {
			continue
		}
		perm, err := s.access.CheckCanEdit(ctx, actor, rec.TaskID, rec.StoreID)
		if err != nil {
			return nil, err
		}
		if perm.CanEdit {
			result[key] = ""
		} else {
			result[key] = perm.Reason
		}
	}
	return result, nil
}

func scopeKey(taskID, storeID string) string {
	return taskID + "|" + storeID
}

func capErrors(errs []string, max int) []string {
	if len(errs) > max {
		return errs[:max]
	}
	return errs
}
