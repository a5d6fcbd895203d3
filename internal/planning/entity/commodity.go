package entity

import "time"

// CommoditySchedule 商品计划记录
// 自然键为 (store_id, task_id, code, sub_date 所在月份)。数据库层不加唯一约束：
// 历史数据存在重复键记录，读取时按 updated_at 最新者为准，清理任务负责物理去重。
type CommoditySchedule struct {
	ID        string    `json:"name" gorm:"primaryKey;size:36"`
	StoreID   string    `json:"store_id" gorm:"size:32;not null;index:idx_commodity_key"`
	TaskID    string    `json:"task_id" gorm:"size:50;not null;index:idx_commodity_key"`
	Code      string    `json:"code" gorm:"size:50;not null;index:idx_commodity_key"`
	Quantity  int       `json:"quantity" gorm:"not null;default:0"`
	SubDate   time.Time `json:"sub_date" gorm:"not null;index"`
	CreatedAt time.Time `json:"creation"`
	UpdatedAt time.Time `json:"modified"`
}

func (CommoditySchedule) TableName() string {
	return "commodity_schedules"
}

// MonthKey 记录归属的月份（YYYY-MM）
func (c *CommoditySchedule) MonthKey() string {
	return c.SubDate.Format("2006-01")
}
