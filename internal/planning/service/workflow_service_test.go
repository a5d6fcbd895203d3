package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/testutil"
)

func setupWorkflowTest(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewServices(Options{DB: db})
	return db, svc
}

func TestResolveWorkflowPrecedence(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	testutil.SeedStore(t, db, "S100", "旗舰店", "owner-001")
	testutil.SeedStore(t, db, "S200", "社区店", "owner-001")
	testutil.SeedTask(t, db, "2026-01-MON-001", entity.TaskTypeMonthly, "S100", "S200")

	defaultID := testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "", true)
	flagshipID := testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "旗舰店", false)

	// 店铺类型精确匹配优先
	workflow, err := svc.Workflow.ResolveWorkflow(ctx, "2026-01-MON-001", "S100")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if workflow == nil || workflow.ID != flagshipID {
		t.Fatalf("expected flagship workflow %s, got %+v", flagshipID, workflow)
	}

	// 无精确匹配时回退默认流程
	workflow, err = svc.Workflow.ResolveWorkflow(ctx, "2026-01-MON-001", "S200")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if workflow == nil || workflow.ID != defaultID {
		t.Fatalf("expected default workflow %s, got %+v", defaultID, workflow)
	}
}

func TestResolveWorkflowInactiveSkipped(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	testutil.SeedStore(t, db, "S100", "旗舰店", "owner-001")
	testutil.SeedTask(t, db, "2026-01-MON-001", entity.TaskTypeMonthly, "S100")

	// 停用的精确匹配流程不生效
	inactive := &entity.ApprovalWorkflow{
		ID:           uuid.New().String(),
		WorkflowName: "停用流程",
		TaskType:     entity.TaskTypeMonthly,
		StoreType:    "旗舰店",
		IsActive:     false,
		Steps: []entity.ApprovalStep{{
			ID: uuid.New().String(), StepOrder: 1,
			ApproverRole: "area_approver", ApproverMode: entity.ApproverModeRole, IsFinal: true,
		}},
	}
	if err := db.Create(inactive).Error; err != nil {
		t.Fatalf("seed inactive workflow: %v", err)
	}
	if err := db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("seed inactive workflow: %v", err)
	}
	defaultID := testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "", true)

	workflow, err := svc.Workflow.ResolveWorkflow(ctx, "2026-01-MON-001", "S100")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if workflow == nil || workflow.ID != defaultID {
		t.Fatalf("expected default workflow, got %+v", workflow)
	}
}

func TestResolveApproverByStoreAssignment(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	testutil.SeedStore(t, db, "S100", "旗舰店", "owner-001")
	testutil.SeedUser(t, db, "zz-role-user", "area_approver")
	testutil.SeedUser(t, db, "assigned-user", "area_approver")

	assignment := &entity.ApproverStoreAssignment{
		ID:           uuid.New().String(),
		ApproverRole: "area_approver",
		Approver:     "assigned-user",
		IsActive:     true,
		Stores: []entity.ApproverStoreAssignmentItem{{
			ID: uuid.New().String(), StoreID: "S100",
		}},
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	step := &entity.ApprovalStep{
		ApproverRole: "area_approver",
		ApproverMode: entity.ApproverModeStoreAssignment,
	}
	approver, err := svc.Workflow.ResolveApprover(ctx, step, "S100")
	if err != nil {
		t.Fatalf("resolve approver failed: %v", err)
	}
	if approver != "assigned-user" {
		t.Fatalf("approver = %s, want assigned-user", approver)
	}

	// 未分配的店铺回退角色解析，取用户ID字典序最小者
	approver, err = svc.Workflow.ResolveApprover(ctx, step, "S999")
	if err != nil {
		t.Fatalf("resolve approver failed: %v", err)
	}
	if approver != "assigned-user" {
		t.Fatalf("fallback approver = %s, want assigned-user", approver)
	}
}

func TestResolveApproverByStoreAttribute(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	testutil.SeedStore(t, db, "S100", "旗舰店", "owner-001")
	testutil.SeedUser(t, db, "manager-007", "area_approver")
	if err := db.Create(&entity.StoreAttribute{
		ID: uuid.New().String(), StoreID: "S100", Name: "region_manager", Value: "manager-007",
	}).Error; err != nil {
		t.Fatalf("seed attribute: %v", err)
	}

	step := &entity.ApprovalStep{
		ApproverRole: "area_approver",
		ApproverMode: entity.ApproverModeStoreAttribute,
		StoreField:   "region_manager",
	}
	approver, err := svc.Workflow.ResolveApprover(ctx, step, "S100")
	if err != nil {
		t.Fatalf("resolve approver failed: %v", err)
	}
	if approver != "manager-007" {
		t.Fatalf("approver = %s, want manager-007", approver)
	}

	// 白名单外的属性名被忽略，回退角色解析
	step.StoreField = "secret_field"
	approver, err = svc.Workflow.ResolveApprover(ctx, step, "S100")
	if err != nil {
		t.Fatalf("resolve approver failed: %v", err)
	}
	if approver != "manager-007" {
		t.Fatalf("fallback approver = %s, want manager-007", approver)
	}
}

func TestResolveApproverNoCandidate(t *testing.T) {
	_, svc := setupWorkflowTest(t)
	ctx := context.Background()

	step := &entity.ApprovalStep{
		ApproverRole: "nonexistent_role",
		ApproverMode: entity.ApproverModeRole,
	}
	_, err := svc.Workflow.ResolveApprover(ctx, step, "S100")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreateWorkflowValidation(t *testing.T) {
	_, svc := setupWorkflowTest(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		workflow entity.ApprovalWorkflow
	}{
		{"无步骤", entity.ApprovalWorkflow{
			WorkflowName: "空流程", TaskType: entity.TaskTypeMonthly,
		}},
		{"无终审", entity.ApprovalWorkflow{
			WorkflowName: "无终审", TaskType: entity.TaskTypeMonthly,
			Steps: []entity.ApprovalStep{
				{StepOrder: 1, ApproverRole: "r1"},
			},
		}},
		{"终审不在最后", entity.ApprovalWorkflow{
			WorkflowName: "终审错位", TaskType: entity.TaskTypeMonthly,
			Steps: []entity.ApprovalStep{
				{StepOrder: 1, ApproverRole: "r1", IsFinal: true},
				{StepOrder: 2, ApproverRole: "r2"},
			},
		}},
		{"步骤序号重复", entity.ApprovalWorkflow{
			WorkflowName: "序号重复", TaskType: entity.TaskTypeMonthly,
			Steps: []entity.ApprovalStep{
				{StepOrder: 1, ApproverRole: "r1"},
				{StepOrder: 1, ApproverRole: "r2", IsFinal: true},
			},
		}},
		{"属性名不在白名单", entity.ApprovalWorkflow{
			WorkflowName: "非法属性", TaskType: entity.TaskTypeMonthly,
			Steps: []entity.ApprovalStep{
				{StepOrder: 1, ApproverRole: "r1", ApproverMode: entity.ApproverModeStoreAttribute, StoreField: "password", IsFinal: true},
			},
		}},
		{"任务类型非法", entity.ApprovalWorkflow{
			WorkflowName: "类型非法", TaskType: "WEEKLY",
			Steps: []entity.ApprovalStep{
				{StepOrder: 1, ApproverRole: "r1", IsFinal: true},
			},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Workflow.CreateWorkflow(ctx, &tc.workflow)
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("expected VALIDATION, got %v", err)
			}
		})
	}
}

func TestDeleteWorkflowInUse(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	workflowID := testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "", true)
	if err := db.Create(&entity.TaskStoreAssignment{
		ID: uuid.New().String(), TaskID: "T1", StoreID: "S1",
		SubmissionStatus: entity.SubmissionSubmitted,
		ApprovalStatus:   entity.ApprovalStatusPending,
		WorkflowID:       workflowID,
	}).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	err := svc.Workflow.DeleteWorkflow(ctx, workflowID)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected CONFLICT for in-use workflow, got %v", err)
	}
}

func TestAssignmentDuplicateClaimWarning(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	testutil.SeedUser(t, db, "approver-a", "area_approver")
	testutil.SeedUser(t, db, "approver-b", "area_approver")
	testutil.SeedStore(t, db, "S100", "旗舰店", "owner-001")

	first := &entity.ApproverStoreAssignment{
		ApproverRole: "area_approver",
		Approver:     "approver-a",
		IsActive:     true,
		Stores:       []entity.ApproverStoreAssignmentItem{{StoreID: "S100"}},
	}
	result, err := svc.Workflow.CreateAssignment(ctx, first)
	if err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	// 同角色第二个分配认领同一店铺：保存成功但有警告
	second := &entity.ApproverStoreAssignment{
		ApproverRole: "area_approver",
		Approver:     "approver-b",
		IsActive:     true,
		Stores:       []entity.ApproverStoreAssignmentItem{{StoreID: "S100"}},
	}
	result, err = svc.Workflow.CreateAssignment(ctx, second)
	if err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want 1 warning", result.Warnings)
	}
}

func TestAssignmentRequiresRole(t *testing.T) {
	db, svc := setupWorkflowTest(t)
	ctx := context.Background()

	testutil.SeedUser(t, db, "plain-user")
	testutil.SeedStore(t, db, "S100", "旗舰店", "owner-001")

	assignment := &entity.ApproverStoreAssignment{
		ApproverRole: "area_approver",
		Approver:     "plain-user",
		IsActive:     true,
		Stores:       []entity.ApproverStoreAssignmentItem{{StoreID: "S100"}},
	}
	_, err := svc.Workflow.CreateAssignment(ctx, assignment)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected VALIDATION for approver without role, got %v", err)
	}
}
