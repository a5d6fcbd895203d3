package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/repository"
	"github.com/jack571754/product-sales-planning/internal/utils"
)

const excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportService 导入导出服务
type ExportService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	commodity *CommodityService
	access    *AccessService
	minio     *minio.Client
	bucket    string
	logger    *zap.Logger
}

// NewExportService 创建导入导出服务
func NewExportService(db *gorm.DB, repos *repository.Repositories, commodity *CommodityService, access *AccessService, mc *minio.Client, bucket string, logger *zap.Logger) *ExportService {
	return &ExportService{
		db:        db,
		repos:     repos,
		commodity: commodity,
		access:    access,
		minio:     mc,
		bucket:    bucket,
		logger:    logger,
	}
}

// ExportFile 生成的Excel文件
type ExportFile struct {
	FileName string
	Content  []byte
}

// BuildImportTemplate 生成商品计划导入模板
func (s *ExportService) BuildImportTemplate(ctx context.Context, taskID string) (*ExportFile, error) {
	months, err := s.taskWindowMonths(ctx, taskID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "商品计划导入模板"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := append([]string{"产品编码", "产品名称"}, months...)
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return nil, apperr.Internal("生成模板失败", err)
	}

	// 示例数据行
	examples := [][]interface{}{
		{"PROD001", "示例商品A"},
		{"PROD002", "示例商品B"},
	}
	for i := range months {
		examples[0] = append(examples[0], 100+i*10)
		examples[1] = append(examples[1], 50+i*5)
	}
	for rowIdx, row := range examples {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, apperr.Internal("生成模板失败", err)
		}
	}

	f.SetColWidth(sheet, "A", "A", 15)
	f.SetColWidth(sheet, "B", "B", 25)
	if len(months) > 0 {
		firstCol, _ := excelize.ColumnNumberToName(3)
		lastCol, _ := excelize.ColumnNumberToName(2 + len(months))
		f.SetColWidth(sheet, firstCol, lastCol, 12)
	}

	if err := writeInstructionSheet(f); err != nil {
		return nil, apperr.Internal("生成模板失败", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperr.Internal("生成模板失败", err)
	}

	file := &ExportFile{
		FileName: fmt.Sprintf("commodity_plan_import_template_%s.xlsx", time.Now().Format("20060102_150405")),
		Content:  buf.Bytes(),
	}
	s.archive(ctx, file)
	return file, nil
}

// ExportCommodityData 导出店铺任务的商品计划数据
// 一个产品一行，计划窗口内的每个月份一列。
func (s *ExportService) ExportCommodityData(ctx context.Context, storeID, taskID string) (*ExportFile, error) {
	if storeID == "" || taskID == "" {
		return nil, apperr.Validation("缺少店铺ID或任务ID")
	}

	data, _, err := s.commodity.buildView(ctx, CommodityQuery{
		StoreID:  storeID,
		TaskID:   taskID,
		ViewMode: "multi",
	})
	if err != nil {
		return nil, err
	}
	items, ok := data.Data.([]MultiViewItem)
	if !ok {
		return nil, apperr.Internal("导出数据格式异常", nil)
	}
	months := data.Months

	f := excelize.NewFile()
	defer f.Close()

	sheet := "商品计划数据"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := append([]string{"产品编码", "产品名称", "规格", "品牌", "类别"}, months...)
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return nil, apperr.Internal("导出失败", err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	for rowIdx, item := range items {
		row := []interface{}{item.Code, item.Name1, item.Specifications, item.Brand, item.Category}
		for _, month := range months {
			if cell, ok := item.Months[month]; ok {
				row = append(row, cell.Quantity)
			} else {
				row = append(row, "")
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, apperr.Internal("导出失败", err)
		}
	}

	f.SetColWidth(sheet, "A", "A", 15)
	f.SetColWidth(sheet, "B", "B", 25)
	f.SetColWidth(sheet, "C", "E", 15)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperr.Internal("导出失败", err)
	}

	file := &ExportFile{
		FileName: fmt.Sprintf("commodity_plan_%s_%s_%s.xlsx", storeID, taskID, time.Now().Format("20060102_150405")),
		Content:  buf.Bytes(),
	}
	s.archive(ctx, file)
	return file, nil
}

// ImportResult 导入结果
type ImportResult struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
	Msg      string   `json:"msg"`
}

// ImportCommodityData 从Excel导入商品计划数据
// 已存在的记录更新数量，不存在的创建；空值和零值跳过。
func (s *ExportService) ImportCommodityData(ctx context.Context, actor entity.ActorContext, storeID, taskID string, r io.Reader) (*ImportResult, error) {
	if storeID == "" || taskID == "" {
		return nil, apperr.Validation("缺少店铺ID或任务ID")
	}
	if err := s.access.RequireEdit(ctx, actor, taskID, storeID); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("无法读取Excel文件: " + err.Error())
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, apperr.Validation("无法读取Excel文件: " + err.Error())
	}
	if len(rows) == 0 || len(rows[0]) < 3 {
		return nil, apperr.Validation("Excel格式错误：至少需要3列（产品编码、产品名称、月份数据）")
	}

	headers := rows[0]
	monthColumns := make([]string, 0, len(headers)-2)
	for _, h := range headers[2:] {
		h = strings.TrimSpace(h)
		if h != "" {
			monthColumns = append(monthColumns, h)
		}
	}
	if len(monthColumns) == 0 {
		return nil, apperr.Validation("Excel格式错误：未找到月份列")
	}

	inserted := 0
	updated := 0
	skipped := 0
	var errs []string

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for rowIdx, row := range rows[1:] {
			rowNum := rowIdx + 2
			if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
				skipped++
				continue
			}
			code := strings.TrimSpace(row[0])

			product, err := s.repos.Product.FindByCode(ctx, code)
			if err != nil {
				return err
			}
			if product == nil {
				errs = append(errs, fmt.Sprintf("第%d行: 产品编码 %s 不存在", rowNum, code))
				continue
			}

			for colIdx, monthStr := range monthColumns {
				if len(row) <= 2+colIdx {
					continue
				}
				raw := strings.TrimSpace(row[2+colIdx])
				if raw == "" || raw == "0" {
					continue
				}

				quantity, err := parseQuantity(raw)
				if err != nil {
					errs = append(errs, fmt.Sprintf("第%d行-%s: 数量格式错误 (%s)", rowNum, monthStr, raw))
					continue
				}
				if quantity == 0 {
					continue
				}
				if quantity < 0 {
					errs = append(errs, fmt.Sprintf("第%d行-%s: 数量不能为负数", rowNum, monthStr))
					continue
				}

				parsedMonth := utils.ParseMonthString(monthStr)
				if parsedMonth == "" {
					errs = append(errs, fmt.Sprintf("第%d行: 月份格式错误 (%s)", rowNum, monthStr))
					continue
				}
				subDate, _ := utils.MonthFirstDay(parsedMonth)

				created, err := upsertMonthQuantityTx(tx, storeID, taskID, code, subDate, quantity)
				if err != nil {
					errs = append(errs, fmt.Sprintf("第%d行-%s: %s", rowNum, monthStr, err.Error()))
					continue
				}
				if created {
					inserted++
				} else {
					updated++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("导入失败", err)
	}

	msg := fmt.Sprintf("成功导入 %d 条，更新 %d 条", inserted, updated)
	if skipped > 0 {
		msg += fmt.Sprintf("，跳过 %d 行空数据", skipped)
	}
	return &ImportResult{
		Inserted: inserted,
		Updated:  updated,
		Skipped:  skipped,
		Errors:   capErrors(errs, 20),
		Msg:      msg,
	}, nil
}

// archive 把生成的文件归档到对象存储，失败只记日志不影响下载
func (s *ExportService) archive(ctx context.Context, file *ExportFile) {
	if s.minio == nil {
		return
	}
	objectName := fmt.Sprintf("exports/%s/%s", time.Now().Format("2006-01"), file.FileName)
	_, err := s.minio.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(file.Content), int64(len(file.Content)),
		minio.PutObjectOptions{ContentType: excelContentType})
	if err != nil && s.logger != nil {
		s.logger.Warn("归档导出文件失败",
			zap.String("object", objectName),
			zap.Error(err))
	}
}

func (s *ExportService) taskWindowMonths(ctx context.Context, taskID string) ([]string, error) {
	if taskID == "" {
		return utils.NextNMonths(time.Now(), planningWindowMonths, false), nil
	}
	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("查询任务失败", err)
	}
	if task == nil {
		return nil, apperr.NotFound("任务不存在")
	}
	return utils.TaskMonths(taskID, task.StartDate, planningWindowMonths, time.Now()), nil
}

func parseQuantity(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Style: 1},
			{Type: "right", Style: 1},
			{Type: "top", Style: 1},
			{Type: "bottom", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", lastCell, styleID)
}

func writeInstructionSheet(f *excelize.File) error {
	sheet := "填写说明"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	instructions := [][]interface{}{
		{"商品计划导入模板使用说明", ""},
		{"", ""},
		{"1. 基本要求", ""},
		{"", "• 产品编码必须在系统中存在"},
		{"", "• 产品名称仅用于参考，不影响导入"},
		{"", "• 月份格式支持：2025-01、202501、2025/01"},
		{"", "• 数量必须为整数，空值或0将被跳过"},
		{"", ""},
		{"2. 导入规则", ""},
		{"", "• 如果记录已存在（相同店铺+任务+产品+月份），将更新数量"},
		{"", "• 如果记录不存在，将创建新记录"},
		{"", "• 导入前请确保已选择店铺和计划任务"},
		{"", ""},
		{"3. 注意事项", ""},
		{"", "• 请勿修改表头行"},
		{"", "• 建议单次导入不超过1000行数据"},
		{"", "• 导入完成后请检查导入结果"},
	}
	for i, row := range instructions {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "B", 50)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "4472C4"},
	})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", "A1", titleStyle)
}
