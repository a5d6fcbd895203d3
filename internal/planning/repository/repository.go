package repository

import "gorm.io/gorm"

// Repositories 仓库集合
type Repositories struct {
	Task       *TaskRepository
	Commodity  *CommodityRepository
	Workflow   *WorkflowRepository
	Assignment *AssignmentRepository
	History    *HistoryRepository
	User       *UserRepository
	Store      *StoreRepository
	Product    *ProductRepository
	Mechanism  *MechanismRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Task:       NewTaskRepository(db),
		Commodity:  NewCommodityRepository(db),
		Workflow:   NewWorkflowRepository(db),
		Assignment: NewAssignmentRepository(db),
		History:    NewHistoryRepository(db),
		User:       NewUserRepository(db),
		Store:      NewStoreRepository(db),
		Product:    NewProductRepository(db),
		Mechanism:  NewMechanismRepository(db),
	}
}
