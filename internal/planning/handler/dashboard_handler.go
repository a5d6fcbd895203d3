package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	svc *service.DashboardService
}

// NewDashboardHandler 创建看板处理器
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// FilterOptions 获取筛选项
// GET /api/v1/dashboard/filter-options
func (h *DashboardHandler) FilterOptions(c *gin.Context) {
	options, err := h.svc.GetFilterOptions(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, options)
}

// TaskProgress 任务进度汇总
// GET /api/v1/dashboard/task-progress/:task_id
func (h *DashboardHandler) TaskProgress(c *gin.Context) {
	progress, err := h.svc.GetTaskProgress(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, progress)
}

// ListTasks 列出计划任务
// GET /api/v1/tasks
func (h *DashboardHandler) ListTasks(c *gin.Context) {
	tasks, err := h.svc.ListTasks(c.Request.Context(), c.Query("task_type"), c.Query("status"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": tasks, "total": len(tasks)})
}

// ListStores 列出店铺
// GET /api/v1/stores
func (h *DashboardHandler) ListStores(c *gin.Context) {
	stores, err := h.svc.ListStores(c.Request.Context(),
		c.Query("store_type"), c.Query("region"), c.Query("owner_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": stores, "total": len(stores)})
}
