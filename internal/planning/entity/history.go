package entity

import "time"

// 审批历史动作标签（面向用户展示，与原系统保持一致）
const (
	HistoryActionSubmit            = "提交"
	HistoryActionApprove           = "通过"
	HistoryActionRejectToPrevious  = "退回上级"
	HistoryActionRejectToSubmitter = "退回提交人"
	HistoryActionWithdraw          = "撤回"
)

// ApprovalHistory 审批历史记录
// 只增不改：任何提交/审批/退回/撤回动作都追加一条，按 action_time 升序读取。
type ApprovalHistory struct {
	ID           string    `json:"name" gorm:"primaryKey;size:36"`
	TaskID       string    `json:"task_id" gorm:"size:50;not null;index:idx_history_task_store"`
	StoreID      string    `json:"store_id" gorm:"size:32;not null;index:idx_history_task_store"`
	ApprovalStep int       `json:"approval_step" gorm:"default:0"`
	Approver     string    `json:"approver" gorm:"size:32;not null"`
	Action       string    `json:"action" gorm:"size:30;not null"`
	Comments     string    `json:"comments" gorm:"type:text"`
	ActionTime   time.Time `json:"action_time" gorm:"not null;index"`
}

func (ApprovalHistory) TableName() string {
	return "approval_histories"
}
