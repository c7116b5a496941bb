package product

import "time"

type Product struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;size:128;not null;uniqueIndex:ux_product_name" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "t_mae_product" }

// RequestConfig is the review policy of a product. AutoApprove decides whether a
// request left with no pending observations finalizes on its own.
type RequestConfig struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProductID   uint64    `gorm:"column:product_id;not null;uniqueIndex:ux_request_config_product" json:"product_id"`
	Name        string    `gorm:"column:name;size:128;not null" json:"name"`
	AutoApprove bool      `gorm:"column:auto_approve;not null;default:false" json:"auto_approve"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (RequestConfig) TableName() string { return "t_affiliation_request_config" }
