package entity

import "time"

// ProductMechanism 产品机制（预设的产品组合，可一键套用到店铺计划）
type ProductMechanism struct {
	ID             string    `json:"name" gorm:"primaryKey;size:140"`
	MechanismName  string    `json:"mechanism_name" gorm:"size:200;not null"`
	ContentSummary string    `json:"content_summary" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 关联
	Items []ProductMechanismItem `json:"product_list,omitempty" gorm:"foreignKey:MechanismID;constraint:OnDelete:CASCADE"`
}

func (ProductMechanism) TableName() string {
	return "product_mechanisms"
}

// ProductMechanismItem 机制中的产品行
type ProductMechanismItem struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	MechanismID string `json:"mechanism_id" gorm:"size:140;not null;index"`
	Code        string `json:"code" gorm:"size:50;not null"`
	Quantity    int    `json:"quantity" gorm:"not null;default:1"`
}

func (ProductMechanismItem) TableName() string {
	return "product_mechanism_items"
}
