package models

import (
	"time"
)

// Category 费用类别
type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:50;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"size:255"`
	IsActive    bool      `json:"isActive" gorm:"default:true;index"`
	CreatedBy   *uint     `json:"createdBy" gorm:"index"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Category) TableName() string {
	return "categories"
}

// DefaultCategory 预置类别
type DefaultCategory struct {
	Name        string
	Description string
}

// DefaultCategories 初始化时写入的类别
func DefaultCategories() []DefaultCategory {
	return []DefaultCategory{
		{"Office Supplies", "Stationery, printer paper and other office consumables"},
		{"Marketing", "Advertising, promotion and campaign costs"},
		{"Food", "Meals and refreshments while on company business"},
		{"IT", "Software, hardware and online services"},
		{"Team Building", "Team events and activities"},
		{"Travel", "Flights, lodging and ground transportation"},
		{"Training", "Courses, conferences and certifications"},
		{"Equipment", "Tools and equipment purchases"},
	}
}
