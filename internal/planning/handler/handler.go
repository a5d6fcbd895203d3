package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

// Handlers 处理器集合
type Handlers struct {
	Approval  *ApprovalHandler
	Commodity *CommodityHandler
	Workflow  *WorkflowHandler
	Dashboard *DashboardHandler
	Export    *ExportHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Approval:  NewApprovalHandler(svc.Approval, svc.Access),
		Commodity: NewCommodityHandler(svc.Commodity, svc.Cleanup),
		Workflow:  NewWorkflowHandler(svc.Workflow),
		Dashboard: NewDashboardHandler(svc.Dashboard),
		Export:    NewExportHandler(svc.Export),
	}
}

// Response 通用响应结构
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Status: "success", Data: data})
}

// SuccessMsg 带消息的成功响应
func SuccessMsg(c *gin.Context, message string, data interface{}) {
	c.JSON(200, Response{Status: "success", Message: message, Data: data})
}

// Fail 错误响应，HTTP状态码由错误分类决定
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		message = "服务器内部错误"
	}
	c.JSON(kind.HTTPStatus(), Response{Status: "error", Message: message})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	c.JSON(400, Response{Status: "error", Message: message})
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (start, pageLength int) {
	start = 0
	pageLength = 20

	if s := c.Query("start"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			start = v
		}
	}
	if pl := c.Query("page_length"); pl != "" {
		if v, err := strconv.Atoi(pl); err == nil && v > 0 && v <= 200 {
			pageLength = v
		}
	}
	return start, pageLength
}
