package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
)

// 店铺属性解析白名单：流程步骤只能引用这些属性名作为审批人来源
var allowedStoreFields = map[string]bool{
	"owner_id":       true,
	"region_manager": true,
	"area_manager":   true,
	"store_manager":  true,
}

// WorkflowService 审批流程服务
type WorkflowService struct {
	db    *gorm.DB
	repos *repository.Repositories
}

// NewWorkflowService 创建审批流程服务
func NewWorkflowService(db *gorm.DB, repos *repository.Repositories) *WorkflowService {
	return &WorkflowService{db: db, repos: repos}
}

// ResolveWorkflow 解析任务店铺适用的审批流程
// 匹配顺序：任务类型+店铺类型的启用流程 > 任务类型的启用默认流程 > 无。
func (s *WorkflowService) ResolveWorkflow(ctx context.Context, taskID, storeID string) (*entity.ApprovalWorkflow, error) {
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("查询任务失败", err)
	}
	if task == nil {
		return nil, apperr.NotFound("任务不存在")
	}

	storeType := ""
	store, err := s.repos.Store.FindByID(ctx, storeID)
	if err != nil {
		return nil, apperr.Internal("查询店铺失败", err)
	}
	if store != nil {
		storeType = store.StoreType
	}

	workflow, err := s.repos.Workflow.FindApplicable(ctx, task.TaskType, storeType)
	if err != nil {
		return nil, apperr.Internal("查询审批流程失败", err)
	}
	return workflow, nil
}

// ResolveApprover 解析流程步骤在指定店铺下的审批人
// 按步骤配置的解析方式查找，失败时兜底到角色解析；均无结果时返回 NOT_FOUND。
func (s *WorkflowService) ResolveApprover(ctx context.Context, step *entity.ApprovalStep, storeID string) (string, error) {
	switch step.ApproverMode {
	case entity.ApproverModeStoreAssignment:
		approver, err := s.repos.Assignment.FindApproverForStore(ctx, step.ApproverRole, storeID)
		if err != nil {
			return "", apperr.Internal("查询店铺审批人分配失败", err)
		}
		if approver != "" {
			return approver, nil
		}
	case entity.ApproverModeStoreAttribute:
		if step.StoreField != "" && allowedStoreFields[step.StoreField] {
			var value string
			var err error
			if step.StoreField == "owner_id" {
				store, ferr := s.repos.Store.FindByID(ctx, storeID)
				if ferr != nil {
					return "", apperr.Internal("查询店铺失败", ferr)
				}
				if store != nil {
					value = store.OwnerID
				}
			} else {
				value, err = s.repos.Store.GetAttribute(ctx, storeID, step.StoreField)
				if err != nil {
					return "", apperr.Internal("查询店铺属性失败", err)
				}
			}
			if value != "" {
				return value, nil
			}
		}
	}

	// 角色兜底：取拥有该角色的用户中ID最小者
	approver, err := s.repos.User.FirstUserWithRole(ctx, step.ApproverRole)
	if err != nil {
		return "", apperr.Internal("按角色查询审批人失败", err)
	}
	if approver == "" {
		return "", apperr.NotFound(fmt.Sprintf("无法确定审批人，角色 %s 下没有可用用户", step.ApproverRole))
	}
	return approver, nil
}

// ListWorkflows 列出全部审批流程
func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]entity.ApprovalWorkflow, error) {
	workflows, err := s.repos.Workflow.List(ctx)
	if err != nil {
		return nil, apperr.Internal("查询审批流程失败", err)
	}
	return workflows, nil
}

// GetWorkflow 获取审批流程详情
func (s *WorkflowService) GetWorkflow(ctx context.Context, workflowID string) (*entity.ApprovalWorkflow, error) {
	workflow, err := s.repos.Workflow.FindByID(ctx, workflowID)
	if err != nil {
		return nil, apperr.Internal("查询审批流程失败", err)
	}
	if workflow == nil {
		return nil, apperr.NotFound("审批流程不存在")
	}
	return workflow, nil
}

// CreateWorkflow 创建审批流程
func (s *WorkflowService) CreateWorkflow(ctx context.Context, workflow *entity.ApprovalWorkflow) (*entity.ApprovalWorkflow, error) {
	if err := validateWorkflow(workflow); err != nil {
		return nil, err
	}

	now := time.Now()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	for i := range workflow.Steps {
		workflow.Steps[i].ID = uuid.New().String()
		workflow.Steps[i].WorkflowID = workflow.ID
		if workflow.Steps[i].ApproverMode == "" {
			workflow.Steps[i].ApproverMode = entity.ApproverModeRole
		}
	}

	if err := s.repos.Workflow.Create(ctx, workflow); err != nil {
		return nil, apperr.Internal("创建审批流程失败", err)
	}
	return workflow, nil
}

// UpdateWorkflow 更新审批流程（步骤整体替换）
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, workflow *entity.ApprovalWorkflow) (*entity.ApprovalWorkflow, error) {
	existing, err := s.repos.Workflow.FindByID(ctx, workflow.ID)
	if err != nil {
		return nil, apperr.Internal("查询审批流程失败", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("审批流程不存在")
	}
	if err := validateWorkflow(workflow); err != nil {
		return nil, err
	}

	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now()
	for i := range workflow.Steps {
		if workflow.Steps[i].ID == "" {
			workflow.Steps[i].ID = uuid.New().String()
		}
		workflow.Steps[i].WorkflowID = workflow.ID
		if workflow.Steps[i].ApproverMode == "" {
			workflow.Steps[i].ApproverMode = entity.ApproverModeRole
		}
	}

	if err := s.repos.Workflow.Update(ctx, workflow); err != nil {
		return nil, apperr.Internal("更新审批流程失败", err)
	}
	return workflow, nil
}

// DeleteWorkflow 删除审批流程
// 仍被进行中审批引用的流程不允许删除。
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, workflowID string) error {
	workflow, err := s.repos.Workflow.FindByID(ctx, workflowID)
	if err != nil {
		return apperr.Internal("查询审批流程失败", err)
	}
	if workflow == nil {
		return apperr.NotFound("审批流程不存在")
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&entity.TaskStoreAssignment{}).
		Where("workflow_id = ? AND approval_status = ?", workflowID, entity.ApprovalStatusPending).
		Count(&count).Error
	if err != nil {
		return apperr.Internal("检查流程引用失败", err)
	}
	if count > 0 {
		return apperr.Conflict("该流程仍有进行中的审批，无法删除")
	}

	if err := s.repos.Workflow.Delete(ctx, workflowID); err != nil {
		return apperr.Internal("删除审批流程失败", err)
	}
	return nil
}

func validateWorkflow(workflow *entity.ApprovalWorkflow) error {
	if workflow.WorkflowName == "" {
		return apperr.Validation("流程名称不能为空")
	}
	if workflow.TaskType != entity.TaskTypeMonthly && workflow.TaskType != entity.TaskTypePromotional {
		return apperr.Validation("无效的任务类型")
	}
	if len(workflow.Steps) == 0 {
		return apperr.Validation("审批流程至少需要一个步骤")
	}

	steps := make([]entity.ApprovalStep, len(workflow.Steps))
	copy(steps, workflow.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })

	seen := make(map[int]bool)
	finalCount := 0
	for i, step := range steps {
		if step.ApproverRole == "" {
			return apperr.Validation("审批步骤缺少审批角色")
		}
		if seen[step.StepOrder] {
			return apperr.Validation("审批步骤序号重复")
		}
		seen[step.StepOrder] = true
		if step.ApproverMode == entity.ApproverModeStoreAttribute {
			if step.StoreField == "" || !allowedStoreFields[step.StoreField] {
				return apperr.Validation("店铺属性解析仅支持白名单内的属性")
			}
		}
		if step.IsFinal {
			finalCount++
			if i != len(steps)-1 {
				return apperr.Validation("终审步骤必须是最后一步")
			}
		}
	}
	if finalCount != 1 {
		return apperr.Validation("审批流程必须有且仅有一个终审步骤")
	}
	return nil
}

// ListAssignments 列出审批人店铺分配
func (s *WorkflowService) ListAssignments(ctx context.Context, approverRole string) ([]entity.ApproverStoreAssignment, error) {
	assignments, err := s.repos.Assignment.List(ctx, approverRole)
	if err != nil {
		return nil, apperr.Internal("查询审批人分配失败", err)
	}
	return assignments, nil
}

// AssignmentResult 分配保存结果
// Warnings 列出被同角色其他启用分配重复认领的店铺，保存仍然成功。
type AssignmentResult struct {
	Assignment *entity.ApproverStoreAssignment `json:"assignment"`
	Warnings   []string                        `json:"warnings,omitempty"`
}

// CreateAssignment 创建审批人店铺分配
func (s *WorkflowService) CreateAssignment(ctx context.Context, assignment *entity.ApproverStoreAssignment) (*AssignmentResult, error) {
	if err := s.validateAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	now := time.Now()
	assignment.ID = uuid.New().String()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	for i := range assignment.Stores {
		assignment.Stores[i].ID = uuid.New().String()
		assignment.Stores[i].AssignmentID = assignment.ID
	}

	warnings, err := s.duplicateClaimWarnings(ctx, assignment, "")
	if err != nil {
		return nil, err
	}

	if err := s.repos.Assignment.Create(ctx, assignment); err != nil {
		return nil, apperr.Internal("创建审批人分配失败", err)
	}
	return &AssignmentResult{Assignment: assignment, Warnings: warnings}, nil
}

// UpdateAssignment 更新审批人店铺分配
func (s *WorkflowService) UpdateAssignment(ctx context.Context, assignment *entity.ApproverStoreAssignment) (*AssignmentResult, error) {
	existing, err := s.repos.Assignment.FindByID(ctx, assignment.ID)
	if err != nil {
		return nil, apperr.Internal("查询审批人分配失败", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("审批人分配不存在")
	}
	if err := s.validateAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	assignment.CreatedAt = existing.CreatedAt
	assignment.UpdatedAt = time.Now()
	for i := range assignment.Stores {
		if assignment.Stores[i].ID == "" {
			assignment.Stores[i].ID = uuid.New().String()
		}
		assignment.Stores[i].AssignmentID = assignment.ID
	}

	warnings, err := s.duplicateClaimWarnings(ctx, assignment, assignment.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Assignment.Update(ctx, assignment); err != nil {
		return nil, apperr.Internal("更新审批人分配失败", err)
	}
	return &AssignmentResult{Assignment: assignment, Warnings: warnings}, nil
}

// DeleteAssignment 删除审批人店铺分配
func (s *WorkflowService) DeleteAssignment(ctx context.Context, assignmentID string) error {
	existing, err := s.repos.Assignment.FindByID(ctx, assignmentID)
	if err != nil {
		return apperr.Internal("查询审批人分配失败", err)
	}
	if existing == nil {
		return apperr.NotFound("审批人分配不存在")
	}
	if err := s.repos.Assignment.Delete(ctx, assignmentID); err != nil {
		return apperr.Internal("删除审批人分配失败", err)
	}
	return nil
}

func (s *WorkflowService) validateAssignment(ctx context.Context, assignment *entity.ApproverStoreAssignment) error {
	if assignment.ApproverRole == "" {
		return apperr.Validation("审批角色不能为空")
	}
	if assignment.Approver == "" {
		return apperr.Validation("审批人不能为空")
	}
	if len(assignment.Stores) == 0 {
		return apperr.Validation("至少需要分配一个店铺")
	}

	hasRole, err := s.repos.User.HasRole(ctx, assignment.Approver, assignment.ApproverRole)
	if err != nil {
		return apperr.Internal("查询用户角色失败", err)
	}
	if !hasRole {
		return apperr.Validation(fmt.Sprintf("用户 %s 不具有角色 %s", assignment.Approver, assignment.ApproverRole))
	}

	seen := make(map[string]bool)
	for _, item := range assignment.Stores {
		if item.StoreID == "" {
			return apperr.Validation("分配明细缺少店铺ID")
		}
		if seen[item.StoreID] {
			return apperr.Validation(fmt.Sprintf("店铺 %s 在分配中重复", item.StoreID))
		}
		seen[item.StoreID] = true
	}
	return nil
}

func (s *WorkflowService) duplicateClaimWarnings(ctx context.Context, assignment *entity.ApproverStoreAssignment, excludeID string) ([]string, error) {
	if !assignment.IsActive {
		return nil, nil
	}
	storeIDs := make([]string, 0, len(assignment.Stores))
	for _, item := range assignment.Stores {
		storeIDs = append(storeIDs, item.StoreID)
	}
	claimed, err := s.repos.Assignment.FindDuplicateClaims(ctx, assignment.ApproverRole, excludeID, storeIDs)
	if err != nil {
		return nil, apperr.Internal("检查店铺重复分配失败", err)
	}
	warnings := make([]string, 0, len(claimed))
	for _, storeID := range claimed {
		warnings = append(warnings, fmt.Sprintf("店铺 %s 已被同角色的其他分配认领", storeID))
	}
	return warnings, nil
}
