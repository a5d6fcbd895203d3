package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
)

// 审批操作类型
const (
	ActionApprove           = "approve"
	ActionRejectToPrevious  = "reject_to_previous"
	ActionRejectToSubmitter = "reject_to_submitter"
)

// ApprovalService 审批服务
type ApprovalService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	workflow *WorkflowService
}

// NewApprovalService 创建审批服务
func NewApprovalService(db *gorm.DB, repos *repository.Repositories, workflow *WorkflowService) *ApprovalService {
	return &ApprovalService{db: db, repos: repos, workflow: workflow}
}

// resolveApprover 为步骤解析审批人
// 无法确定审批人时返回空串，流程继续推进而不是中断。
func (s *ApprovalService) resolveApprover(ctx context.Context, step *entity.ApprovalStep, storeID string) (string, error) {
	approver, err := s.workflow.ResolveApprover(ctx, step, storeID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return "", nil
		}
		return "", err
	}
	return approver, nil
}

// SubmitResult 提交结果
type SubmitResult struct {
	Message          string `json:"message"`
	WorkflowID       string `json:"workflow_id"`
	NextApproverRole string `json:"next_approver_role"`
}

// Submit 提交审批申请
// 首次提交从第一级开始；退回后重新提交保持当前步骤不变。
func (s *ApprovalService) Submit(ctx context.Context, actor entity.ActorContext, taskID, storeID, comment string) (*SubmitResult, error) {
	assignment, err := s.repos.Task.FindAssignment(ctx, taskID, storeID)
	if err != nil {
		return nil, apperr.Internal("查询任务店铺记录失败", err)
	}
	if assignment == nil {
		return nil, apperr.NotFound("未找到对应的任务店铺记录")
	}

	if assignment.SubmissionStatus == entity.SubmissionSubmitted &&
		assignment.ApprovalStatus != entity.ApprovalStatusRejected {
		return nil, apperr.Conflict("该任务已提交，无需重复提交")
	}

	var commodityCount int64
	err = s.db.WithContext(ctx).
		Model(&entity.CommoditySchedule{}).
		Where("task_id = ? AND store_id = ?", taskID, storeID).
		Count(&commodityCount).Error
	if err != nil {
		return nil, apperr.Internal("查询商品计划数据失败", err)
	}
	if commodityCount == 0 {
		return nil, apperr.Validation("请先添加商品计划数据再提交审批")
	}

	workflow, err := s.workflow.ResolveWorkflow(ctx, taskID, storeID)
	if err != nil {
		return nil, err
	}
	if workflow == nil || len(workflow.Steps) == 0 {
		return nil, apperr.NotFound("未找到适用的审批流程配置，请联系管理员")
	}

	isResubmit := assignment.ApprovalStatus == entity.ApprovalStatusRejected &&
		assignment.CurrentApprovalStep > 0

	now := time.Now()
	var nextRole string
	if isResubmit {
		stepIndex := assignment.CurrentApprovalStep - 1
		if stepIndex >= len(workflow.Steps) {
			return nil, apperr.Conflict("审批流程已变更，当前步骤不存在，请撤回后重新提交")
		}
		step := workflow.Steps[stepIndex]
		approver, err := s.resolveApprover(ctx, &step, storeID)
		if err != nil {
			return nil, err
		}
		assignment.ApprovalStatus = entity.ApprovalStatusPending
		assignment.CanEdit = false
		assignment.RejectionReason = ""
		assignment.CurrentApprover = approver
		nextRole = step.ApproverRole
	} else {
		step := workflow.Steps[0]
		approver, err := s.resolveApprover(ctx, &step, storeID)
		if err != nil {
			return nil, err
		}
		assignment.SubmissionStatus = entity.SubmissionSubmitted
		assignment.ApprovalStatus = entity.ApprovalStatusPending
		assignment.CurrentApprovalStep = 1
		assignment.WorkflowID = workflow.ID
		assignment.SubmittedBy = actor.UserID
		assignment.SubmissionTime = &now
		assignment.CanEdit = false
		assignment.RejectionReason = ""
		assignment.CurrentApprover = approver
		nextRole = step.ApproverRole
	}

	if comment == "" {
		comment = "提交审批"
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.SaveAssignmentGuarded(tx, assignment); err != nil {
			return err
		}
		return tx.Create(&entity.ApprovalHistory{
			ID:           uuid.New().String(),
			TaskID:       taskID,
			StoreID:      storeID,
			ApprovalStep: 0,
			Approver:     actor.UserID,
			Action:       entity.HistoryActionSubmit,
			Comments:     comment,
			ActionTime:   now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleAssignment) {
			return nil, apperr.Conflict("该记录已被其他操作更新，请刷新后重试")
		}
		return nil, apperr.Internal("提交审批失败", err)
	}

	return &SubmitResult{
		Message:          "审批申请已提交",
		WorkflowID:       workflow.ID,
		NextApproverRole: nextRole,
	}, nil
}

// Act 执行审批操作（通过 / 退回上级 / 退回提交人）
func (s *ApprovalService) Act(ctx context.Context, actor entity.ActorContext, taskID, storeID, action, comments string) (string, error) {
	assignment, err := s.repos.Task.FindAssignment(ctx, taskID, storeID)
	if err != nil {
		return "", apperr.Internal("查询任务店铺记录失败", err)
	}
	if assignment == nil {
		return "", apperr.NotFound("未找到对应的任务店铺记录")
	}

	if assignment.ApprovalStatus != entity.ApprovalStatusPending {
		return "", apperr.Conflict("该任务当前状态不允许审批操作")
	}

	workflow, err := s.repos.Workflow.FindByID(ctx, assignment.WorkflowID)
	if err != nil {
		return "", apperr.Internal("查询审批流程失败", err)
	}
	if workflow == nil {
		return "", apperr.NotFound("审批流程不存在")
	}

	allowed, err := s.canApprove(ctx, actor, assignment, workflow, storeID)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", apperr.PermissionDenied("您没有权限审批此任务")
	}

	currentStep := assignment.CurrentApprovalStep
	now := time.Now()

	var message, actionText string
	switch action {
	case ActionApprove:
		maxStep := len(workflow.Steps)
		if currentStep < maxStep {
			nextStep := workflow.Steps[currentStep]
			approver, err := s.resolveApprover(ctx, &nextStep, storeID)
			if err != nil {
				return "", err
			}
			assignment.CurrentApprovalStep = currentStep + 1
			assignment.CurrentApprover = approver
			message = "审批通过，已转至下一级审批"
		} else {
			assignment.ApprovalStatus = entity.ApprovalStatusApproved
			assignment.ApprovalCompletionTime = &now
			assignment.CurrentApprover = ""
			message = "审批流程已全部通过"
		}
		actionText = entity.HistoryActionApprove

	case ActionRejectToPrevious:
		if currentStep <= 1 {
			return "", apperr.Validation("已是第一级，无法退回上一级")
		}
		prevStep := workflow.Steps[currentStep-2]
		approver, err := s.resolveApprover(ctx, &prevStep, storeID)
		if err != nil {
			return "", err
		}
		assignment.CurrentApprovalStep = currentStep - 1
		assignment.CurrentApprover = approver
		assignment.ApprovalStatus = entity.ApprovalStatusRejected
		assignment.CanEdit = true
		if comments == "" {
			comments = "退回上一级"
		}
		assignment.RejectionReason = comments
		actionText = entity.HistoryActionRejectToPrevious
		message = "已退回上一级审批"

	case ActionRejectToSubmitter:
		assignment.CurrentApprovalStep = 0
		assignment.ApprovalStatus = entity.ApprovalStatusRejected
		assignment.CanEdit = true
		if comments == "" {
			comments = "退回提交人"
		}
		assignment.RejectionReason = comments
		assignment.CurrentApprover = ""
		actionText = entity.HistoryActionRejectToSubmitter
		message = "已退回提交人"

	default:
		return "", apperr.Validation("无效的操作类型")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.SaveAssignmentGuarded(tx, assignment); err != nil {
			return err
		}
		return tx.Create(&entity.ApprovalHistory{
			ID:           uuid.New().String(),
			TaskID:       taskID,
			StoreID:      storeID,
			ApprovalStep: currentStep,
			Approver:     actor.UserID,
			Action:       actionText,
			Comments:     comments,
			ActionTime:   now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleAssignment) {
			return "", apperr.Conflict("该记录已被其他操作更新，请刷新后重试")
		}
		return "", apperr.Internal("审批操作失败", err)
	}

	return message, nil
}

// Withdraw 撤回审批申请
// 完整重置提交与审批状态，仅提交人或管理员可操作。
func (s *ApprovalService) Withdraw(ctx context.Context, actor entity.ActorContext, taskID, storeID, comment string) error {
	assignment, err := s.repos.Task.FindAssignment(ctx, taskID, storeID)
	if err != nil {
		return apperr.Internal("查询任务店铺记录失败", err)
	}
	if assignment == nil {
		return apperr.NotFound("未找到对应的任务店铺记录")
	}

	if assignment.SubmissionStatus != entity.SubmissionSubmitted {
		return apperr.Conflict("该任务未提交，无法撤回")
	}
	if assignment.ApprovalStatus == entity.ApprovalStatusApproved {
		return apperr.Conflict("审批已完成，无法撤回")
	}
	if assignment.SubmittedBy != actor.UserID && !actor.IsAdmin() {
		return apperr.PermissionDenied("只有提交人可以撤回审批")
	}

	stepBefore := assignment.CurrentApprovalStep
	assignment.SubmissionStatus = entity.SubmissionNotStarted
	assignment.ApprovalStatus = ""
	assignment.CurrentApprovalStep = 0
	assignment.CanEdit = true
	assignment.RejectionReason = ""
	assignment.CurrentApprover = ""
	assignment.WorkflowID = ""
	assignment.SubmittedBy = ""
	assignment.SubmissionTime = nil

	if comment == "" {
		comment = "撤回审批"
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.SaveAssignmentGuarded(tx, assignment); err != nil {
			return err
		}
		return tx.Create(&entity.ApprovalHistory{
			ID:           uuid.New().String(),
			TaskID:       taskID,
			StoreID:      storeID,
			ApprovalStep: stepBefore,
			Approver:     actor.UserID,
			Action:       entity.HistoryActionWithdraw,
			Comments:     comment,
			ActionTime:   now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleAssignment) {
			return apperr.Conflict("该记录已被其他操作更新，请刷新后重试")
		}
		return apperr.Internal("撤回审批失败", err)
	}
	return nil
}

// History 获取审批历史（按时间升序）
func (s *ApprovalService) History(ctx context.Context, taskID, storeID string) ([]entity.ApprovalHistory, error) {
	records, err := s.repos.History.ListByTaskStore(ctx, taskID, storeID)
	if err != nil {
		return nil, apperr.Internal("查询审批历史失败", err)
	}
	return records, nil
}

// WorkflowState 流程与当前状态快照
type WorkflowState struct {
	HasWorkflow  bool                     `json:"has_workflow"`
	Workflow     *entity.ApprovalWorkflow `json:"workflow,omitempty"`
	CurrentState *AssignmentState         `json:"current_state,omitempty"`
}

// AssignmentState 任务店铺当前状态
type AssignmentState struct {
	Status          string `json:"status"`
	ApprovalStatus  string `json:"approval_status"`
	CurrentStep     int    `json:"current_step"`
	CanEdit         bool   `json:"can_edit"`
	RejectionReason string `json:"rejection_reason"`
}

// GetWorkflowState 获取任务店铺适用的流程及当前审批状态
func (s *ApprovalService) GetWorkflowState(ctx context.Context, taskID, storeID string) (*WorkflowState, error) {
	workflow, err := s.workflow.ResolveWorkflow(ctx, taskID, storeID)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return &WorkflowState{HasWorkflow: false}, nil
	}

	state := &AssignmentState{
		Status:  entity.SubmissionNotStarted,
		CanEdit: true,
	}
	assignment, err := s.repos.Task.FindAssignment(ctx, taskID, storeID)
	if err != nil {
		return nil, apperr.Internal("查询任务店铺记录失败", err)
	}
	if assignment != nil {
		state.Status = assignment.SubmissionStatus
		state.ApprovalStatus = assignment.ApprovalStatus
		state.CurrentStep = assignment.CurrentApprovalStep
		state.CanEdit = assignment.CanEdit
		state.RejectionReason = assignment.RejectionReason
	}

	return &WorkflowState{
		HasWorkflow:  true,
		Workflow:     workflow,
		CurrentState: state,
	}, nil
}

// PendingForApprover 列出等待指定审批人处理的任务店铺
func (s *ApprovalService) PendingForApprover(ctx context.Context, approver string) ([]entity.TaskStoreAssignment, error) {
	assignments, err := s.repos.Task.ListAssignmentsByApprover(ctx, approver)
	if err != nil {
		return nil, apperr.Internal("查询待审批列表失败", err)
	}
	return assignments, nil
}

// canApprove 当前用户能否审批该记录
// 管理员放行；否则要求具有当前步骤角色，且店铺范围分配指定了他人时拒绝。
func (s *ApprovalService) canApprove(ctx context.Context, actor entity.ActorContext, assignment *entity.TaskStoreAssignment, workflow *entity.ApprovalWorkflow, storeID string) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}

	stepIndex := assignment.CurrentApprovalStep - 1
	if stepIndex < 0 || stepIndex >= len(workflow.Steps) {
		return false, nil
	}
	step := workflow.Steps[stepIndex]

	if !actor.HasRole(step.ApproverRole) {
		return false, nil
	}

	if step.ApproverMode == entity.ApproverModeStoreAssignment {
		assigned, err := s.repos.Assignment.FindApproverForStore(ctx, step.ApproverRole, storeID)
		if err != nil {
			return false, apperr.Internal("查询店铺审批人分配失败", err)
		}
		if assigned != "" && assigned != actor.UserID {
			return false, nil
		}
	}
	return true, nil
}
