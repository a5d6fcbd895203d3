package service

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/testutil"
)

func setupCommodityTest(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewServices(Options{DB: db})

	testutil.SeedUser(t, db, "owner-001")
	testutil.SeedUser(t, db, "l1-approver", "area_approver")
	testutil.SeedUser(t, db, "l2-approver", "regional_approver")
	testutil.SeedStore(t, db, testStoreID, "旗舰店", "owner-001")
	testutil.SeedTask(t, db, testTaskID, entity.TaskTypeMonthly, testStoreID)
	testutil.SeedProduct(t, db, "PROD001", "苹果汁", "品牌甲", "饮料")
	testutil.SeedProduct(t, db, "PROD002", "橙汁", "品牌乙", "饮料")

	return db, svc
}

func TestBulkInsertCreatesWindowRows(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	actor := testutil.Actor("owner-001")

	result, err := svc.Commodity.BulkInsert(ctx, actor, testStoreID, testTaskID, []string{"PROD001", "PROD002"})
	if err != nil {
		t.Fatalf("bulk insert failed: %v", err)
	}
	// 2个产品 × 4个窗口月份
	if result.Count != 8 {
		t.Fatalf("inserted = %d, want 8", result.Count)
	}

	var count int64
	db.Model(&entity.CommoditySchedule{}).
		Where("store_id = ? AND task_id = ? AND quantity = 0", testStoreID, testTaskID).
		Count(&count)
	if count != 8 {
		t.Fatalf("zero-quantity rows = %d, want 8", count)
	}

	// 幂等：重复调用全部跳过
	result, err = svc.Commodity.BulkInsert(ctx, actor, testStoreID, testTaskID, []string{"PROD001", "PROD002"})
	if err != nil {
		t.Fatalf("second bulk insert failed: %v", err)
	}
	if result.Count != 0 || result.Skipped != 8 {
		t.Fatalf("second call inserted=%d skipped=%d, want 0/8", result.Count, result.Skipped)
	}
}

func TestUpdateMonthQuantityUpsert(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	actor := testutil.Actor("owner-001")

	// 不存在时创建
	if err := svc.Commodity.UpdateMonthQuantity(ctx, actor, testStoreID, testTaskID, "PROD001", "2025-12", 50); err != nil {
		t.Fatalf("update month quantity failed: %v", err)
	}
	var record entity.CommoditySchedule
	if err := db.Where("store_id = ? AND task_id = ? AND code = ?", testStoreID, testTaskID, "PROD001").First(&record).Error; err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if record.Quantity != 50 {
		t.Fatalf("quantity = %d, want 50", record.Quantity)
	}

	// 已存在时更新而非新建
	if err := svc.Commodity.UpdateMonthQuantity(ctx, actor, testStoreID, testTaskID, "PROD001", "2025-12", 80); err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	var count int64
	db.Model(&entity.CommoditySchedule{}).
		Where("store_id = ? AND task_id = ? AND code = ?", testStoreID, testTaskID, "PROD001").
		Count(&count)
	if count != 1 {
		t.Fatalf("records = %d, want 1", count)
	}
	db.Where("id = ?", record.ID).First(&record)
	if record.Quantity != 80 {
		t.Fatalf("quantity = %d, want 80", record.Quantity)
	}

	// 负数数量拒绝
	err := svc.Commodity.UpdateMonthQuantity(ctx, actor, testStoreID, testTaskID, "PROD001", "2025-12", -1)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected VALIDATION for negative quantity, got %v", err)
	}
}

func TestMultiViewDeduplicatesByLatestUpdate(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()

	// 同一自然键两条记录，更新时间较晚者生效
	oldID := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")
	newID := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 99, "2025-12")
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	db.Model(&entity.CommoditySchedule{}).Where("id = ?", oldID).Update("updated_at", base)
	db.Model(&entity.CommoditySchedule{}).Where("id = ?", newID).Update("updated_at", base.Add(time.Hour))

	data, err := svc.Commodity.GetCommodityData(ctx, testutil.Actor("owner-001"), CommodityQuery{
		StoreID:  testStoreID,
		TaskID:   testTaskID,
		ViewMode: "multi",
	})
	if err != nil {
		t.Fatalf("get data failed: %v", err)
	}
	items := data.Data.([]MultiViewItem)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	cell, ok := items[0].Months["2025-12"]
	if !ok {
		t.Fatal("missing 2025-12 cell")
	}
	if cell.Quantity != 99 || cell.RecordName != newID {
		t.Fatalf("cell = %+v, want quantity 99 from %s", cell, newID)
	}

	// 月份列为窗口月份与数据月份的有序并集
	wantMonths := []string{"2025-12", "2026-01", "2026-02", "2026-03"}
	if len(data.Months) != len(wantMonths) {
		t.Fatalf("months = %v, want %v", data.Months, wantMonths)
	}
	for i, m := range wantMonths {
		if data.Months[i] != m {
			t.Fatalf("months = %v, want %v", data.Months, wantMonths)
		}
	}
}

func TestSingleViewFilterAndPagination(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()

	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 20, "2026-01")
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD002", 30, "2025-12")

	// 品牌筛选后的总数是过滤后的数量
	data, err := svc.Commodity.GetCommodityData(ctx, testutil.Actor("owner-001"), CommodityQuery{
		StoreID:    testStoreID,
		TaskID:     testTaskID,
		Brand:      "品牌甲",
		PageLength: 1,
	})
	if err != nil {
		t.Fatalf("get data failed: %v", err)
	}
	if data.TotalCount != 2 {
		t.Fatalf("total = %d, want 2", data.TotalCount)
	}
	items := data.Data.([]SingleViewItem)
	if len(items) != 1 {
		t.Fatalf("page items = %d, want 1", len(items))
	}

	// 搜索关键词匹配产品名称
	data, err = svc.Commodity.GetCommodityData(ctx, testutil.Actor("owner-001"), CommodityQuery{
		StoreID:    testStoreID,
		TaskID:     testTaskID,
		SearchTerm: "橙汁",
		PageLength: 20,
	})
	if err != nil {
		t.Fatalf("get data failed: %v", err)
	}
	if data.TotalCount != 1 {
		t.Fatalf("search total = %d, want 1", data.TotalCount)
	}
}

func TestWindowExcludesOutOfRangeRecords(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()

	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")
	// 窗口外的记录（窗口为 2025-12 至 2026-03）
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 20, "2026-06")
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 30, "2025-01")

	data, err := svc.Commodity.GetCommodityData(ctx, testutil.Actor("owner-001"), CommodityQuery{
		StoreID:    testStoreID,
		TaskID:     testTaskID,
		PageLength: 20,
	})
	if err != nil {
		t.Fatalf("get data failed: %v", err)
	}
	if data.TotalCount != 1 {
		t.Fatalf("total = %d, want 1 (window-filtered)", data.TotalCount)
	}
}

func TestBatchUpdateQuantityAndDelete(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	actor := testutil.Actor("owner-001")

	id1 := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")
	id2 := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD002", 20, "2025-12")

	result, err := svc.Commodity.BatchUpdateQuantity(ctx, actor, []string{id1, id2, "missing-id"}, 77)
	if err != nil {
		t.Fatalf("batch update failed: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("updated = %d, want 2", result.Count)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want 1 error", result.Errors)
	}

	// 负数数量整体拒绝
	_, err = svc.Commodity.BatchUpdateQuantity(ctx, actor, []string{id1}, -5)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}

	result, err = svc.Commodity.BatchDelete(ctx, actor, []string{id1, id2})
	if err != nil {
		t.Fatalf("batch delete failed: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("deleted = %d, want 2", result.Count)
	}
	var count int64
	db.Model(&entity.CommoditySchedule{}).Count(&count)
	if count != 0 {
		t.Fatalf("remaining records = %d, want 0", count)
	}
}

func TestBatchDeleteByCodes(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	actor := testutil.Actor("owner-001")

	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 20, "2026-01")
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD002", 30, "2025-12")

	result, err := svc.Commodity.BatchDeleteByCodes(ctx, actor, testStoreID, testTaskID, []string{"PROD001"})
	if err != nil {
		t.Fatalf("delete by codes failed: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("deleted = %d, want 2", result.Count)
	}

	var count int64
	db.Model(&entity.CommoditySchedule{}).Where("code = ?", "PROD002").Count(&count)
	if count != 1 {
		t.Fatalf("PROD002 records = %d, want 1", count)
	}
}

func TestEditGateLocksDuringApproval(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	owner := testutil.Actor("owner-001")

	testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "", true)
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")

	// 提交后进入审批，编辑被锁定
	if _, err := svc.Approval.Submit(ctx, owner, testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	err := svc.Commodity.UpdateMonthQuantity(ctx, owner, testStoreID, testTaskID, "PROD001", "2025-12", 99)
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED while in approval, got %v", err)
	}

	// 退回提交人后解锁
	if _, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, ActionRejectToSubmitter, ""); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if err := svc.Commodity.UpdateMonthQuantity(ctx, owner, testStoreID, testTaskID, "PROD001", "2025-12", 99); err != nil {
		t.Fatalf("update after reject failed: %v", err)
	}
}

func TestEditGateRequiresStoreOwner(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()

	testutil.SeedUser(t, db, "stranger-001")
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")

	err := svc.Commodity.UpdateMonthQuantity(ctx, testutil.Actor("stranger-001"), testStoreID, testTaskID, "PROD001", "2025-12", 5)
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED for non-owner, got %v", err)
	}

	// 管理员不受店铺负责人限制
	testutil.SeedUser(t, db, "admin-009", entity.RoleAdmin)
	if err := svc.Commodity.UpdateMonthQuantity(ctx, testutil.Actor("admin-009", entity.RoleAdmin), testStoreID, testTaskID, "PROD001", "2025-12", 5); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
}

func TestCleanupDuplicatesKeepsLatest(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()

	oldID := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")
	midID := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 20, "2025-12")
	newID := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 30, "2025-12")
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	db.Model(&entity.CommoditySchedule{}).Where("id = ?", oldID).Update("updated_at", base)
	db.Model(&entity.CommoditySchedule{}).Where("id = ?", midID).Update("updated_at", base.Add(time.Hour))
	db.Model(&entity.CommoditySchedule{}).Where("id = ?", newID).Update("updated_at", base.Add(2*time.Hour))

	// 不同键的记录不受影响
	keepID := testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD002", 40, "2025-12")

	result, err := svc.Cleanup.CleanupDuplicates(ctx, testStoreID, testTaskID)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if result.Groups != 1 || result.Deleted != 2 {
		t.Fatalf("groups=%d deleted=%d, want 1/2", result.Groups, result.Deleted)
	}

	var remaining []entity.CommoditySchedule
	db.Order("code ASC").Find(&remaining)
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
	if remaining[0].ID != newID {
		t.Fatalf("kept record = %s, want latest %s", remaining[0].ID, newID)
	}
	if remaining[1].ID != keepID {
		t.Fatalf("unrelated record missing, got %s", remaining[1].ID)
	}
}

func TestGetCommodityDataIncludesStoreTaskAndEditState(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	owner := testutil.Actor("owner-001")

	testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "", true)
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 10, "2025-12")

	data, err := svc.Commodity.GetCommodityData(ctx, owner, CommodityQuery{
		StoreID: testStoreID,
		TaskID:  testTaskID,
	})
	if err != nil {
		t.Fatalf("get data failed: %v", err)
	}
	if data.StoreInfo == nil || data.StoreInfo.Name != testStoreID {
		t.Fatalf("store_info = %+v, want store %s", data.StoreInfo, testStoreID)
	}
	if data.StoreInfo.StoreType != "旗舰店" {
		t.Fatalf("store_type = %s", data.StoreInfo.StoreType)
	}
	if data.TaskInfo == nil || data.TaskInfo.Name != testTaskID || data.TaskInfo.TaskType != entity.TaskTypeMonthly {
		t.Fatalf("task_info = %+v, want task %s", data.TaskInfo, testTaskID)
	}
	if !data.CanEdit || data.EditReason != "" {
		t.Fatalf("can_edit = %v reason = %q, want editable", data.CanEdit, data.EditReason)
	}
	if data.ApprovalStatus == nil || data.ApprovalStatus.Status != entity.SubmissionNotStarted {
		t.Fatalf("approval_status = %+v", data.ApprovalStatus)
	}

	// 提交后编辑被锁定，审批状态为待审批
	if _, err := svc.Approval.Submit(ctx, owner, testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	data, err = svc.Commodity.GetCommodityData(ctx, owner, CommodityQuery{
		StoreID: testStoreID,
		TaskID:  testTaskID,
	})
	if err != nil {
		t.Fatalf("get data failed: %v", err)
	}
	if data.CanEdit {
		t.Fatal("can_edit = true after submit, want false")
	}
	if data.EditReason != "任务正在审批中，无法编辑" {
		t.Fatalf("edit_reason = %q", data.EditReason)
	}
	if data.ApprovalStatus == nil || data.ApprovalStatus.ApprovalStatus != entity.ApprovalStatusPending {
		t.Fatalf("approval_status = %+v, want PENDING", data.ApprovalStatus)
	}
}

func TestApplyMechanisms(t *testing.T) {
	db, svc := setupCommodityTest(t)
	ctx := context.Background()
	actor := testutil.Actor("owner-001")

	testutil.SeedMechanism(t, db, "MECH-001", map[string]int{
		"PROD001": 3,
		"PROD002": 0,
	})

	result, err := svc.Commodity.ApplyMechanisms(ctx, actor, testStoreID, testTaskID, []string{"MECH-001", "MECH-MISSING"})
	if err != nil {
		t.Fatalf("apply mechanisms failed: %v", err)
	}
	// 2个产品 × 4个窗口月份
	if result.Count != 8 {
		t.Fatalf("inserted = %d, want 8", result.Count)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "机制 MECH-MISSING 不存在" {
		t.Fatalf("errors = %v", result.Errors)
	}

	// 数量取机制行默认值，未填时为1
	var record entity.CommoditySchedule
	if err := db.Where("store_id = ? AND task_id = ? AND code = ?", testStoreID, testTaskID, "PROD001").First(&record).Error; err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if record.Quantity != 3 {
		t.Fatalf("PROD001 quantity = %d, want 3", record.Quantity)
	}
	var record2 entity.CommoditySchedule
	if err := db.Where("store_id = ? AND task_id = ? AND code = ?", testStoreID, testTaskID, "PROD002").First(&record2).Error; err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if record2.Quantity != 1 {
		t.Fatalf("PROD002 quantity = %d, want 1", record2.Quantity)
	}

	// 幂等：重复应用全部跳过
	result, err = svc.Commodity.ApplyMechanisms(ctx, actor, testStoreID, testTaskID, []string{"MECH-001"})
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if result.Count != 0 || result.Skipped != 8 {
		t.Fatalf("second apply inserted=%d skipped=%d, want 0/8", result.Count, result.Skipped)
	}
}

func TestProductDialogList(t *testing.T) {
	_, svc := setupCommodityTest(t)
	ctx := context.Background()

	products, err := svc.Commodity.ProductDialogList(ctx, "苹果", "", "", 0)
	if err != nil {
		t.Fatalf("product list failed: %v", err)
	}
	if len(products) != 1 || products[0].Code != "PROD001" {
		t.Fatalf("products = %+v, want PROD001 only", products)
	}
}
