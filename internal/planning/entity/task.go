package entity

import "time"

// 任务类型常量
const (
	TaskTypeMonthly     = "MONTHLY"
	TaskTypePromotional = "PROMOTIONAL"
)

// 任务状态常量
const (
	TaskStatusNotStarted = "NOT_STARTED"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusClosed     = "CLOSED"
)

// 提交状态常量
const (
	SubmissionNotStarted = "NOT_STARTED"
	SubmissionSubmitted  = "SUBMITTED"
)

// 审批状态常量（空串表示尚未进入审批）
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
)

// PlanTask 计划任务（月度/促销周期）
type PlanTask struct {
	ID        string     `json:"name" gorm:"primaryKey;size:50"`
	TaskName  string     `json:"task_name" gorm:"size:200;not null"`
	TaskType  string     `json:"task_type" gorm:"size:20;not null;index"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `json:"status" gorm:"size:20;not null;default:'NOT_STARTED'"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// 关联
	StoreAssignments []TaskStoreAssignment `json:"store_assignments,omitempty" gorm:"foreignKey:TaskID"`
}

func (PlanTask) TableName() string {
	return "plan_tasks"
}

// TaskStoreAssignment 任务-店铺分配
// 每个 (task, store) 对的审批状态以这行记录为准。
type TaskStoreAssignment struct {
	ID                     string     `json:"id" gorm:"primaryKey;size:36"`
	TaskID                 string     `json:"task_id" gorm:"size:50;not null;uniqueIndex:idx_task_store"`
	StoreID                string     `json:"store_id" gorm:"size:32;not null;uniqueIndex:idx_task_store"`
	SubmissionStatus       string     `json:"submission_status" gorm:"size:20;not null;default:'NOT_STARTED'"`
	ApprovalStatus         string     `json:"approval_status" gorm:"size:20"`
	CurrentApprovalStep    int        `json:"current_approval_step" gorm:"default:0"`
	CanEdit                bool       `json:"can_edit" gorm:"default:true"`
	RejectionReason        string     `json:"rejection_reason" gorm:"type:text"`
	SubmittedBy            string     `json:"submitted_by" gorm:"size:32"`
	CurrentApprover        string     `json:"current_approver" gorm:"size:32"`
	WorkflowID             string     `json:"workflow_id" gorm:"size:36"`
	SubmissionTime         *time.Time `json:"submission_time"`
	ApprovalCompletionTime *time.Time `json:"approval_completion_time"`
	// 乐观并发计数器：并发审批操作发生覆盖时返回 CONFLICT 而非静默丢失
	Version   int       `json:"version" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TaskStoreAssignment) TableName() string {
	return "task_store_assignments"
}
