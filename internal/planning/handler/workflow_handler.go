package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

// WorkflowHandler 审批流程配置处理器
type WorkflowHandler struct {
	svc *service.WorkflowService
}

// NewWorkflowHandler 创建审批流程配置处理器
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// List 列出审批流程
// GET /api/v1/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	workflows, err := h.svc.ListWorkflows(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": workflows, "total": len(workflows)})
}

// Get 获取审批流程详情
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	workflow, err := h.svc.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, workflow)
}

// Create 创建审批流程
// POST /api/v1/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	var workflow entity.ApprovalWorkflow
	if err := c.ShouldBindJSON(&workflow); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	created, err := h.svc.CreateWorkflow(c.Request.Context(), &workflow)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, created)
}

// Update 更新审批流程
// PUT /api/v1/workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	var workflow entity.ApprovalWorkflow
	if err := c.ShouldBindJSON(&workflow); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	workflow.ID = c.Param("id")

	updated, err := h.svc.UpdateWorkflow(c.Request.Context(), &workflow)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, updated)
}

// Delete 删除审批流程
// DELETE /api/v1/workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteWorkflow(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, "审批流程已删除", nil)
}

// ListAssignments 列出审批人店铺分配
// GET /api/v1/approver-assignments
func (h *WorkflowHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.svc.ListAssignments(c.Request.Context(), c.Query("approver_role"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": assignments, "total": len(assignments)})
}

// CreateAssignment 创建审批人店铺分配
// POST /api/v1/approver-assignments
func (h *WorkflowHandler) CreateAssignment(c *gin.Context) {
	var assignment entity.ApproverStoreAssignment
	if err := c.ShouldBindJSON(&assignment); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.CreateAssignment(c.Request.Context(), &assignment)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// UpdateAssignment 更新审批人店铺分配
// PUT /api/v1/approver-assignments/:id
func (h *WorkflowHandler) UpdateAssignment(c *gin.Context) {
	var assignment entity.ApproverStoreAssignment
	if err := c.ShouldBindJSON(&assignment); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	assignment.ID = c.Param("id")

	result, err := h.svc.UpdateAssignment(c.Request.Context(), &assignment)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// DeleteAssignment 删除审批人店铺分配
// DELETE /api/v1/approver-assignments/:id
func (h *WorkflowHandler) DeleteAssignment(c *gin.Context) {
	if err := h.svc.DeleteAssignment(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, "审批人分配已删除", nil)
}
