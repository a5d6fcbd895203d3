package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jack571754/product-sales-planning/internal/middleware"
	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

// ApprovalHandler 审批处理器
type ApprovalHandler struct {
	svc    *service.ApprovalService
	access *service.AccessService
}

// NewApprovalHandler 创建审批处理器
func NewApprovalHandler(svc *service.ApprovalService, access *service.AccessService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, access: access}
}

type submitReq struct {
	TaskID  string `json:"task_id" binding:"required"`
	StoreID string `json:"store_id" binding:"required"`
	Comment string `json:"comment"`
}

// Submit 提交审批申请
// POST /api/v1/approval/submit
func (h *ApprovalHandler) Submit(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.Submit(c.Request.Context(), middleware.Actor(c), req.TaskID, req.StoreID, req.Comment)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Message, gin.H{
		"workflow_id":        result.WorkflowID,
		"next_approver_role": result.NextApproverRole,
	})
}

type actReq struct {
	TaskID   string `json:"task_id" binding:"required"`
	StoreID  string `json:"store_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

// Act 执行审批操作
// POST /api/v1/approval/act
func (h *ApprovalHandler) Act(c *gin.Context) {
	var req actReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	message, err := h.svc.Act(c.Request.Context(), middleware.Actor(c), req.TaskID, req.StoreID, req.Action, req.Comments)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, message, nil)
}

type withdrawReq struct {
	TaskID  string `json:"task_id" binding:"required"`
	StoreID string `json:"store_id" binding:"required"`
	Comment string `json:"comment"`
}

// Withdraw 撤回审批申请
// POST /api/v1/approval/withdraw
func (h *ApprovalHandler) Withdraw(c *gin.Context) {
	var req withdrawReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.Withdraw(c.Request.Context(), middleware.Actor(c), req.TaskID, req.StoreID, req.Comment); err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, "审批已撤回", nil)
}

// History 获取审批历史
// GET /api/v1/approval/history?task_id=&store_id=
func (h *ApprovalHandler) History(c *gin.Context) {
	taskID := c.Query("task_id")
	storeID := c.Query("store_id")
	if taskID == "" || storeID == "" {
		BadRequest(c, "缺少任务ID或店铺ID")
		return
	}

	records, err := h.svc.History(c.Request.Context(), taskID, storeID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, records)
}

// WorkflowState 获取适用流程及当前审批状态
// GET /api/v1/approval/workflow-state?task_id=&store_id=
func (h *ApprovalHandler) WorkflowState(c *gin.Context) {
	taskID := c.Query("task_id")
	storeID := c.Query("store_id")
	if taskID == "" || storeID == "" {
		BadRequest(c, "缺少任务ID或店铺ID")
		return
	}

	state, err := h.svc.GetWorkflowState(c.Request.Context(), taskID, storeID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, state)
}

// CheckCanEdit 检查编辑权限
// GET /api/v1/approval/can-edit?task_id=&store_id=
func (h *ApprovalHandler) CheckCanEdit(c *gin.Context) {
	taskID := c.Query("task_id")
	storeID := c.Query("store_id")
	if taskID == "" || storeID == "" {
		BadRequest(c, "缺少任务ID或店铺ID")
		return
	}

	perm, err := h.access.CheckCanEdit(c.Request.Context(), middleware.Actor(c), taskID, storeID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, perm)
}

// Pending 列出等待当前用户处理的审批
// GET /api/v1/approval/pending
func (h *ApprovalHandler) Pending(c *gin.Context) {
	actor := middleware.Actor(c)
	assignments, err := h.svc.PendingForApprover(c.Request.Context(), actor.UserID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": assignments, "total": len(assignments)})
}
