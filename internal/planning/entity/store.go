package entity

import "time"

// Store 店铺
type Store struct {
	ID        string    `json:"name" gorm:"primaryKey;size:32"`
	ShopName  string    `json:"shop_name" gorm:"size:200;not null"`
	StoreType string    `json:"store_type" gorm:"size:50;index"`
	Region    string    `json:"region" gorm:"size:100"`
	OwnerID   string    `json:"owner_id" gorm:"size:32;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Store) TableName() string {
	return "stores"
}

// StoreAttribute 店铺属性
// 审批人按店铺属性解析时从这里读取，属性名受白名单约束。
type StoreAttribute struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	StoreID string `json:"store_id" gorm:"size:32;not null;uniqueIndex:idx_store_attr"`
	Name    string `json:"name" gorm:"size:50;not null;uniqueIndex:idx_store_attr"`
	Value   string `json:"value" gorm:"size:128"`
}

func (StoreAttribute) TableName() string {
	return "store_attributes"
}

// Product 产品
type Product struct {
	Code           string    `json:"code" gorm:"primaryKey;size:50;column:code"`
	Name1          string    `json:"name1" gorm:"size:200;not null"`
	Specifications string    `json:"specifications" gorm:"size:200"`
	Brand          string    `json:"brand" gorm:"size:100;index"`
	Category       string    `json:"category" gorm:"size:100;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
