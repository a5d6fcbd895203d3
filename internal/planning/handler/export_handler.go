package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jack571754/product-sales-planning/internal/middleware"
	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

const excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导入导出处理器
type ExportHandler struct {
	svc *service.ExportService
}

// NewExportHandler 创建导入导出处理器
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// DownloadTemplate 下载导入模板
// GET /api/v1/export/template?task_id=
func (h *ExportHandler) DownloadTemplate(c *gin.Context) {
	file, err := h.svc.BuildImportTemplate(c.Request.Context(), c.Query("task_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	writeExcel(c, file)
}

// ExportData 导出商品计划数据
// GET /api/v1/export/commodity?store_id=&task_id=
func (h *ExportHandler) ExportData(c *gin.Context) {
	file, err := h.svc.ExportCommodityData(c.Request.Context(), c.Query("store_id"), c.Query("task_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	writeExcel(c, file)
}

// ImportData 从Excel导入商品计划数据
// POST /api/v1/export/import (multipart: file, store_id, task_id)
func (h *ExportHandler) ImportData(c *gin.Context) {
	storeID := c.PostForm("store_id")
	taskID := c.PostForm("task_id")
	if storeID == "" || taskID == "" {
		BadRequest(c, "缺少店铺ID或任务ID")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "未上传文件")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "无法读取上传文件: "+err.Error())
		return
	}
	defer f.Close()

	result, err := h.svc.ImportCommodityData(c.Request.Context(), middleware.Actor(c), storeID, taskID, f)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessMsg(c, result.Msg, result)
}

func writeExcel(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, excelContentType, file.Content)
}
