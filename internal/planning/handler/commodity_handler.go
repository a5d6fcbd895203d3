package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jack571754/product-sales-planning/internal/middleware"
	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

// CommodityHandler 商品计划处理器
type CommodityHandler struct {
	svc     *service.CommodityService
	cleanup *service.CleanupService
}

// NewCommodityHandler 创建商品计划处理器
func NewCommodityHandler(svc *service.CommodityService, cleanup *service.CleanupService) *CommodityHandler {
	return &CommodityHandler{svc: svc, cleanup: cleanup}
}

// GetData 获取商品计划数据（单月/多月视图）
// GET /api/v1/commodity/data
func (h *CommodityHandler) GetData(c *gin.Context) {
	start, pageLength := GetPagination(c)
	query := service.CommodityQuery{
		StoreID:    c.Query("store_id"),
		TaskID:     c.Query("task_id"),
		Brand:      c.Query("brand"),
		Category:   c.Query("category"),
		SearchTerm: c.Query("search_term"),
		Start:      start,
		PageLength: pageLength,
		ViewMode:   c.DefaultQuery("view_mode", "single"),
	}
	if storeIDs := c.Query("store_ids"); storeIDs != "" {
		query.StoreIDs = strings.Split(storeIDs, ",")
	}

	data, err := h.svc.GetCommodityData(c.Request.Context(), middleware.Actor(c), query)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, data)
}

type bulkInsertReq struct {
	StoreID string   `json:"store_id" binding:"required"`
	TaskID  string   `json:"task_id" binding:"required"`
	Codes   []string `json:"codes" binding:"required"`
}

// BulkInsert 批量添加商品计划
// POST /api/v1/commodity/bulk-insert
func (h *CommodityHandler) BulkInsert(c *gin.Context) {
	var req bulkInsertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BulkInsert(c.Request.Context(), middleware.Actor(c), req.StoreID, req.TaskID, req.Codes)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

type batchQuantityReq struct {
	Names    []string `json:"names" binding:"required"`
	Quantity int      `json:"quantity"`
}

// BatchUpdateQuantity 批量更新数量
// POST /api/v1/commodity/batch-quantity
func (h *CommodityHandler) BatchUpdateQuantity(c *gin.Context) {
	var req batchQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BatchUpdateQuantity(c.Request.Context(), middleware.Actor(c), req.Names, req.Quantity)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

type batchDeleteReq struct {
	Names []string `json:"names" binding:"required"`
}

// BatchDelete 批量删除记录
// POST /api/v1/commodity/batch-delete
func (h *CommodityHandler) BatchDelete(c *gin.Context) {
	var req batchDeleteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BatchDelete(c.Request.Context(), middleware.Actor(c), req.Names)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

type batchDeleteByCodesReq struct {
	StoreID string   `json:"store_id" binding:"required"`
	TaskID  string   `json:"task_id" binding:"required"`
	Codes   []string `json:"codes" binding:"required"`
}

// BatchDeleteByCodes 按产品编码批量删除
// POST /api/v1/commodity/batch-delete-by-codes
func (h *CommodityHandler) BatchDeleteByCodes(c *gin.Context) {
	var req batchDeleteByCodesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BatchDeleteByCodes(c.Request.Context(), middleware.Actor(c), req.StoreID, req.TaskID, req.Codes)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

type monthQuantityReq struct {
	StoreID  string `json:"store_id" binding:"required"`
	TaskID   string `json:"task_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Month    string `json:"month" binding:"required"`
	Quantity int    `json:"quantity"`
}

// UpdateMonthQuantity 更新某产品某月份的计划数量
// POST /api/v1/commodity/month-quantity
func (h *CommodityHandler) UpdateMonthQuantity(c *gin.Context) {
	var req monthQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	err := h.svc.UpdateMonthQuantity(c.Request.Context(), middleware.Actor(c),
		req.StoreID, req.TaskID, req.Code, req.Month, req.Quantity)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, "已保存", nil)
}

type batchMonthQuantityReq struct {
	StoreID string                        `json:"store_id" binding:"required"`
	TaskID  string                        `json:"task_id" binding:"required"`
	Updates []service.MonthQuantityUpdate `json:"updates" binding:"required"`
}

// BatchUpdateMonthQuantities 批量更新多个产品的月份数量
// POST /api/v1/commodity/batch-month-quantities
func (h *CommodityHandler) BatchUpdateMonthQuantities(c *gin.Context) {
	var req batchMonthQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BatchUpdateMonthQuantities(c.Request.Context(), middleware.Actor(c),
		req.StoreID, req.TaskID, req.Updates)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

type applyMechanismsReq struct {
	StoreID        string   `json:"store_id" binding:"required"`
	TaskID         string   `json:"task_id" binding:"required"`
	MechanismNames []string `json:"mechanism_names" binding:"required"`
}

// ApplyMechanisms 应用产品机制
// POST /api/v1/commodity/apply-mechanisms
func (h *CommodityHandler) ApplyMechanisms(c *gin.Context) {
	var req applyMechanismsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.ApplyMechanisms(c.Request.Context(), middleware.Actor(c), req.StoreID, req.TaskID, req.MechanismNames)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

// ListMechanisms 机制选择列表
// GET /api/v1/commodity/mechanisms
func (h *CommodityHandler) ListMechanisms(c *gin.Context) {
	mechanisms, err := h.svc.ListMechanisms(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, mechanisms)
}

// ProductDialogList 商品选择列表
// GET /api/v1/commodity/products
func (h *CommodityHandler) ProductDialogList(c *gin.Context) {
	limit := 500
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	products, err := h.svc.ProductDialogList(c.Request.Context(),
		c.Query("search_term"), c.Query("brand"), c.Query("category"), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, products)
}

// CleanupDuplicates 清理重复记录
// POST /api/v1/commodity/cleanup-duplicates
func (h *CommodityHandler) CleanupDuplicates(c *gin.Context) {
	var req struct {
		StoreID string `json:"store_id"`
		TaskID  string `json:"task_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.cleanup.CleanupDuplicates(c.Request.Context(), req.StoreID, req.TaskID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}
