package entity

import "time"

// 管理员角色：可越过审批权限与编辑权限检查
const RoleAdmin = "planning_admin"

// User 用户
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Username  string    `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:128"`
	Status    string    `json:"status" gorm:"size:20;not null;default:'active'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Role 角色
type Role struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	IsSystem  bool      `json:"is_system" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// UserRole 用户-角色关联
type UserRole struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	UserID   string `json:"user_id" gorm:"size:32;not null;index"`
	RoleCode string `json:"role_code" gorm:"size:50;not null;index"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// ActorContext 调用方上下文
// 所有状态机与权限检查的入口都显式接收该结构，不读取任何全局会话状态。
type ActorContext struct {
	UserID string
	Name   string
	Roles  []string
}

// HasRole 是否拥有指定角色
func (a ActorContext) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin 是否为管理员
func (a ActorContext) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}
