package service

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/apperr"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/testutil"
)

const (
	testTaskID  = "2025-12-MON-745"
	testStoreID = "S001"
)

func setupApprovalTest(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewServices(Options{DB: db})

	testutil.SeedUser(t, db, "owner-001")
	testutil.SeedUser(t, db, "l1-approver", "area_approver")
	testutil.SeedUser(t, db, "l2-approver", "regional_approver")
	testutil.SeedUser(t, db, "admin-001", entity.RoleAdmin)

	testutil.SeedStore(t, db, testStoreID, "旗舰店", "owner-001")
	testutil.SeedTask(t, db, testTaskID, entity.TaskTypeMonthly, testStoreID)
	testutil.SeedWorkflow(t, db, entity.TaskTypeMonthly, "", true)
	testutil.SeedProduct(t, db, "PROD001", "示例商品A", "品牌甲", "饮料")

	return db, svc
}

func seedPlanData(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedCommodity(t, db, testStoreID, testTaskID, "PROD001", 100, "2025-12")
}

func TestSubmitRequiresPlanData(t *testing.T) {
	_, svc := setupApprovalTest(t)
	ctx := context.Background()

	_, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, "")
	if err == nil {
		t.Fatal("expected error for submit without plan data")
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected VALIDATION, got %v", apperr.KindOf(err))
	}
}

func TestSubmitAndFullApprovalFlow(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	result, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, "请审批")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.NextApproverRole != "area_approver" {
		t.Errorf("next approver role = %s, want area_approver", result.NextApproverRole)
	}

	assignment := testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.SubmissionStatus != entity.SubmissionSubmitted {
		t.Errorf("submission status = %s, want SUBMITTED", assignment.SubmissionStatus)
	}
	if assignment.ApprovalStatus != entity.ApprovalStatusPending {
		t.Errorf("approval status = %s, want PENDING", assignment.ApprovalStatus)
	}
	if assignment.CurrentApprovalStep != 1 {
		t.Errorf("current step = %d, want 1", assignment.CurrentApprovalStep)
	}
	if assignment.CurrentApprover != "l1-approver" {
		t.Errorf("current approver = %s, want l1-approver", assignment.CurrentApprover)
	}
	if assignment.CanEdit {
		t.Error("assignment should be locked after submit")
	}
	if assignment.SubmittedBy != "owner-001" {
		t.Errorf("submitted by = %s, want owner-001", assignment.SubmittedBy)
	}

	// 第一级通过
	msg, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, ActionApprove, "")
	if err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	if msg != "审批通过，已转至下一级审批" {
		t.Errorf("unexpected message: %s", msg)
	}

	assignment = testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.CurrentApprovalStep != 2 {
		t.Errorf("current step = %d, want 2", assignment.CurrentApprovalStep)
	}
	if assignment.CurrentApprover != "l2-approver" {
		t.Errorf("current approver = %s, want l2-approver", assignment.CurrentApprover)
	}

	// 终审通过
	msg, err = svc.Approval.Act(ctx, testutil.Actor("l2-approver", "regional_approver"), testTaskID, testStoreID, ActionApprove, "")
	if err != nil {
		t.Fatalf("final approve failed: %v", err)
	}
	if msg != "审批流程已全部通过" {
		t.Errorf("unexpected message: %s", msg)
	}

	assignment = testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.ApprovalStatus != entity.ApprovalStatusApproved {
		t.Errorf("approval status = %s, want APPROVED", assignment.ApprovalStatus)
	}
	if assignment.CurrentApprover != "" {
		t.Errorf("current approver should be cleared, got %s", assignment.CurrentApprover)
	}
	if assignment.ApprovalCompletionTime == nil {
		t.Error("approval completion time not set")
	}

	// 历史按时间升序：提交、通过、通过
	history, err := svc.Approval.History(ctx, testTaskID, testStoreID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	wantActions := []string{entity.HistoryActionSubmit, entity.HistoryActionApprove, entity.HistoryActionApprove}
	for i, want := range wantActions {
		if history[i].Action != want {
			t.Errorf("history[%d].Action = %s, want %s", i, history[i].Action, want)
		}
	}
}

func TestDuplicateSubmit(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	_, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, "")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected CONFLICT for duplicate submit, got %v", err)
	}
}

func TestRejectToPreviousAtFirstStep(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, ActionRejectToPrevious, "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected VALIDATION for reject at first step, got %v", err)
	}
}

func TestRejectToPreviousAndResubmitKeepsStep(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, ActionApprove, ""); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}

	// 第二级退回上一级
	if _, err := svc.Approval.Act(ctx, testutil.Actor("l2-approver", "regional_approver"), testTaskID, testStoreID, ActionRejectToPrevious, "数量有疑问"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	assignment := testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.CurrentApprovalStep != 1 {
		t.Errorf("current step = %d, want 1", assignment.CurrentApprovalStep)
	}
	if assignment.ApprovalStatus != entity.ApprovalStatusRejected {
		t.Errorf("approval status = %s, want REJECTED", assignment.ApprovalStatus)
	}
	if !assignment.CanEdit {
		t.Error("assignment should be editable after reject")
	}
	if assignment.RejectionReason != "数量有疑问" {
		t.Errorf("rejection reason = %s", assignment.RejectionReason)
	}

	// 重新提交：步骤保持在第一级
	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	assignment = testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.CurrentApprovalStep != 1 {
		t.Errorf("resubmit step = %d, want 1", assignment.CurrentApprovalStep)
	}
	if assignment.ApprovalStatus != entity.ApprovalStatusPending {
		t.Errorf("resubmit approval status = %s, want PENDING", assignment.ApprovalStatus)
	}
	if assignment.CanEdit {
		t.Error("assignment should be locked after resubmit")
	}
	if assignment.RejectionReason != "" {
		t.Errorf("rejection reason should be cleared, got %s", assignment.RejectionReason)
	}
}

func TestRejectToSubmitter(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, ActionRejectToSubmitter, "重做"); err != nil {
		t.Fatalf("reject to submitter failed: %v", err)
	}

	assignment := testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.CurrentApprovalStep != 0 {
		t.Errorf("current step = %d, want 0", assignment.CurrentApprovalStep)
	}
	if assignment.CurrentApprover != "" {
		t.Errorf("current approver should be cleared, got %s", assignment.CurrentApprover)
	}
	if !assignment.CanEdit {
		t.Error("assignment should be editable")
	}

	// 退回提交人后重新提交从第一级重新开始
	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	assignment = testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.CurrentApprovalStep != 1 {
		t.Errorf("resubmit step = %d, want 1", assignment.CurrentApprovalStep)
	}
}

func TestApprovePermission(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// 无角色用户不能审批
	_, err := svc.Approval.Act(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ActionApprove, "")
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED, got %v", err)
	}

	// 管理员可以越过角色检查审批
	if _, err := svc.Approval.Act(ctx, testutil.Actor("admin-001", entity.RoleAdmin), testTaskID, testStoreID, ActionApprove, ""); err != nil {
		t.Fatalf("admin approve failed: %v", err)
	}
}

func TestInvalidAction(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	_, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, "nonsense", "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected VALIDATION for invalid action, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	// 未提交不能撤回
	err := svc.Approval.Withdraw(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, "")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected CONFLICT for withdraw before submit, got %v", err)
	}

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// 非提交人不能撤回
	err = svc.Approval.Withdraw(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, "")
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED, got %v", err)
	}

	// 提交人撤回后全部状态重置
	if err := svc.Approval.Withdraw(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	assignment := testutil.GetAssignment(t, db, testTaskID, testStoreID)
	if assignment.SubmissionStatus != entity.SubmissionNotStarted {
		t.Errorf("submission status = %s, want NOT_STARTED", assignment.SubmissionStatus)
	}
	if assignment.ApprovalStatus != "" {
		t.Errorf("approval status = %s, want empty", assignment.ApprovalStatus)
	}
	if assignment.CurrentApprovalStep != 0 {
		t.Errorf("current step = %d, want 0", assignment.CurrentApprovalStep)
	}
	if !assignment.CanEdit {
		t.Error("assignment should be editable after withdraw")
	}
	if assignment.WorkflowID != "" || assignment.SubmittedBy != "" || assignment.SubmissionTime != nil {
		t.Error("submission fields should be reset after withdraw")
	}
}

func TestWithdrawAfterApprovalCompleted(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := svc.Approval.Act(ctx, testutil.Actor("l1-approver", "area_approver"), testTaskID, testStoreID, ActionApprove, ""); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.Approval.Act(ctx, testutil.Actor("l2-approver", "regional_approver"), testTaskID, testStoreID, ActionApprove, ""); err != nil {
		t.Fatalf("final approve failed: %v", err)
	}

	err := svc.Approval.Withdraw(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, "")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected CONFLICT for withdraw after approval, got %v", err)
	}
}

func TestGetWorkflowState(t *testing.T) {
	db, svc := setupApprovalTest(t)
	ctx := context.Background()
	seedPlanData(t, db)

	state, err := svc.Approval.GetWorkflowState(ctx, testTaskID, testStoreID)
	if err != nil {
		t.Fatalf("workflow state failed: %v", err)
	}
	if !state.HasWorkflow {
		t.Fatal("expected workflow to be found")
	}
	if len(state.Workflow.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(state.Workflow.Steps))
	}
	if state.CurrentState.CurrentStep != 0 || !state.CurrentState.CanEdit {
		t.Error("initial state should be step 0 and editable")
	}

	if _, err := svc.Approval.Submit(ctx, testutil.Actor("owner-001"), testTaskID, testStoreID, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	state, err = svc.Approval.GetWorkflowState(ctx, testTaskID, testStoreID)
	if err != nil {
		t.Fatalf("workflow state failed: %v", err)
	}
	if state.CurrentState.CurrentStep != 1 || state.CurrentState.CanEdit {
		t.Error("state after submit should be step 1 and locked")
	}
}
