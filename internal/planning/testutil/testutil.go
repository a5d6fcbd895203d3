package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jack571754/product-sales-planning/internal/planning/entity"
)

// NewTestDB 创建内存数据库并迁移全部表
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&entity.User{},
		&entity.Role{},
		&entity.UserRole{},
		&entity.Store{},
		&entity.StoreAttribute{},
		&entity.Product{},
		&entity.ProductMechanism{},
		&entity.ProductMechanismItem{},
		&entity.PlanTask{},
		&entity.TaskStoreAssignment{},
		&entity.CommoditySchedule{},
		&entity.ApprovalWorkflow{},
		&entity.ApprovalStep{},
		&entity.ApproverStoreAssignment{},
		&entity.ApproverStoreAssignmentItem{},
		&entity.ApprovalHistory{},
	)
	if err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	return db
}

// SeedUser 创建用户及其角色
func SeedUser(t *testing.T, db *gorm.DB, userID string, roles ...string) {
	t.Helper()

	user := &entity.User{
		ID:       userID,
		Username: userID,
		Name:     "用户" + userID,
		Email:    userID + "@example.com",
		Status:   "active",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	for _, role := range roles {
		ur := &entity.UserRole{
			ID:       uuid.New().String(),
			UserID:   userID,
			RoleCode: role,
		}
		if err := db.Create(ur).Error; err != nil {
			t.Fatalf("创建用户角色失败: %v", err)
		}
	}
}

// SeedStore 创建店铺
func SeedStore(t *testing.T, db *gorm.DB, storeID, storeType, ownerID string) {
	t.Helper()

	store := &entity.Store{
		ID:        storeID,
		ShopName:  "店铺" + storeID,
		StoreType: storeType,
		Region:    "华东",
		OwnerID:   ownerID,
	}
	if err := db.Create(store).Error; err != nil {
		t.Fatalf("创建测试店铺失败: %v", err)
	}
}

// SeedProduct 创建产品
func SeedProduct(t *testing.T, db *gorm.DB, code, name, brand, category string) {
	t.Helper()

	product := &entity.Product{
		Code:     code,
		Name1:    name,
		Brand:    brand,
		Category: category,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("创建测试产品失败: %v", err)
	}
}

// SeedMechanism 创建产品机制，codeQuantities 为产品编码到默认数量的映射
func SeedMechanism(t *testing.T, db *gorm.DB, mechanismID string, codeQuantities map[string]int) {
	t.Helper()

	mechanism := &entity.ProductMechanism{
		ID:            mechanismID,
		MechanismName: "机制" + mechanismID,
	}
	for code, quantity := range codeQuantities {
		mechanism.Items = append(mechanism.Items, entity.ProductMechanismItem{
			ID:       uuid.New().String(),
			Code:     code,
			Quantity: quantity,
		})
	}
	if err := db.Create(mechanism).Error; err != nil {
		t.Fatalf("创建产品机制失败: %v", err)
	}
}

// SeedTask 创建计划任务及店铺分配
func SeedTask(t *testing.T, db *gorm.DB, taskID, taskType string, storeIDs ...string) {
	t.Helper()

	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	task := &entity.PlanTask{
		ID:        taskID,
		TaskName:  "任务" + taskID,
		TaskType:  taskType,
		StartDate: &start,
		Status:    entity.TaskStatusInProgress,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("创建测试任务失败: %v", err)
	}
	for _, storeID := range storeIDs {
		assignment := &entity.TaskStoreAssignment{
			ID:               uuid.New().String(),
			TaskID:           taskID,
			StoreID:          storeID,
			SubmissionStatus: entity.SubmissionNotStarted,
			CanEdit:          true,
		}
		if err := db.Create(assignment).Error; err != nil {
			t.Fatalf("创建任务店铺分配失败: %v", err)
		}
	}
}

// SeedWorkflow 创建两级审批流程（第二级为终审），返回流程ID
func SeedWorkflow(t *testing.T, db *gorm.DB, taskType, storeType string, isDefault bool, roles ...string) string {
	t.Helper()

	if len(roles) == 0 {
		roles = []string{"area_approver", "regional_approver"}
	}
	workflow := &entity.ApprovalWorkflow{
		ID:           uuid.New().String(),
		WorkflowName: "测试流程",
		TaskType:     taskType,
		StoreType:    storeType,
		IsActive:     true,
		IsDefault:    isDefault,
	}
	for i, role := range roles {
		workflow.Steps = append(workflow.Steps, entity.ApprovalStep{
			ID:           uuid.New().String(),
			WorkflowID:   workflow.ID,
			StepOrder:    i + 1,
			StepName:     role,
			ApproverRole: role,
			ApproverMode: entity.ApproverModeRole,
			IsFinal:      i == len(roles)-1,
		})
	}
	if err := db.Create(workflow).Error; err != nil {
		t.Fatalf("创建测试流程失败: %v", err)
	}
	return workflow.ID
}

// SeedCommodity 创建商品计划记录，返回记录ID
func SeedCommodity(t *testing.T, db *gorm.DB, storeID, taskID, code string, quantity int, month string) string {
	t.Helper()

	subDate, err := time.Parse("2006-01", month)
	if err != nil {
		t.Fatalf("无效的月份: %v", err)
	}
	record := &entity.CommoditySchedule{
		ID:       uuid.New().String(),
		StoreID:  storeID,
		TaskID:   taskID,
		Code:     code,
		Quantity: quantity,
		SubDate:  subDate,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("创建商品计划记录失败: %v", err)
	}
	return record.ID
}

// Actor 构造调用方上下文
func Actor(userID string, roles ...string) entity.ActorContext {
	return entity.ActorContext{
		UserID: userID,
		Name:   "用户" + userID,
		Roles:  roles,
	}
}

// GetAssignment 读取任务店铺分配记录
func GetAssignment(t *testing.T, db *gorm.DB, taskID, storeID string) *entity.TaskStoreAssignment {
	t.Helper()

	var assignment entity.TaskStoreAssignment
	if err := db.Where("task_id = ? AND store_id = ?", taskID, storeID).First(&assignment).Error; err != nil {
		t.Fatalf("读取任务店铺分配失败: %v", err)
	}
	return &assignment
}
