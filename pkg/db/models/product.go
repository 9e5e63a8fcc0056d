package models

import "time"

// Product is the catalog entry that owns sellable variants. Catalog edits happen
// elsewhere; checkout and stats only read it.
type Product struct {
	ID          int64            `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string           `gorm:"column:name;not null"`
	BrandName   *string          `gorm:"column:brand_name"`
	Description *string          `gorm:"column:description"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
