package entity

import "time"

// 审批人解析方式常量
const (
	ApproverModeRole            = "role"
	ApproverModeStoreAssignment = "store_assignment"
	ApproverModeStoreAttribute  = "store_attribute"
)

// ApprovalWorkflow 审批流程定义
type ApprovalWorkflow struct {
	ID           string    `json:"name" gorm:"primaryKey;size:36"`
	WorkflowName string    `json:"workflow_name" gorm:"size:200;not null"`
	TaskType     string    `json:"task_type" gorm:"size:20;not null;index"`
	StoreType    string    `json:"store_type" gorm:"size:50;index"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	IsDefault    bool      `json:"is_default" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 关联：按 step_order 升序
	Steps []ApprovalStep `json:"approval_steps,omitempty" gorm:"foreignKey:WorkflowID"`
}

func (ApprovalWorkflow) TableName() string {
	return "approval_workflows"
}

// ApprovalStep 审批步骤
type ApprovalStep struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	WorkflowID   string `json:"workflow_id" gorm:"size:36;not null;index"`
	StepOrder    int    `json:"step_order" gorm:"not null"`
	StepName     string `json:"step_name" gorm:"size:100"`
	ApproverRole string `json:"approver_role" gorm:"size:50;not null"`
	// 解析方式：role / store_assignment / store_attribute
	ApproverMode string `json:"approver_mode" gorm:"size:30;not null;default:'role'"`
	// 解析方式为 store_attribute 时读取的店铺属性名
	StoreField string `json:"store_field" gorm:"size:50"`
	IsFinal    bool   `json:"is_final" gorm:"default:false"`
}

func (ApprovalStep) TableName() string {
	return "approval_steps"
}

// ApproverStoreAssignment 审批人店铺分配
// 指定某角色下的某用户负责哪些店铺的审批。
type ApproverStoreAssignment struct {
	ID           string    `json:"name" gorm:"primaryKey;size:36"`
	ApproverRole string    `json:"approver_role" gorm:"size:50;not null;index"`
	Approver     string    `json:"approver" gorm:"size:32;not null"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 关联
	Stores []ApproverStoreAssignmentItem `json:"stores,omitempty" gorm:"foreignKey:AssignmentID"`
}

func (ApproverStoreAssignment) TableName() string {
	return "approver_store_assignments"
}

// ApproverStoreAssignmentItem 分配明细（店铺）
type ApproverStoreAssignmentItem struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	AssignmentID string `json:"assignment_id" gorm:"size:36;not null;index"`
	StoreID      string `json:"store_id" gorm:"size:32;not null;index"`
	StoreName    string `json:"store_name" gorm:"size:200"`
}

func (ApproverStoreAssignmentItem) TableName() string {
	return "approver_store_assignment_items"
}
