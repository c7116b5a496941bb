package affiliation

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusObserved Status = "observed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusObserved:
		return true
	}
	return false
}

// Affiliation is the merchant onboarding record. ID is a 32-char lowercase hex.
type Affiliation struct {
	ID           string    `gorm:"column:id;type:char(32);primaryKey" json:"id"`
	CustomerID   string    `gorm:"column:customer_id;size:64;not null;index" json:"customer_id"`
	ProductID    uint64    `gorm:"column:product_id;not null;index" json:"product_id"`
	ChannelID    uint64    `gorm:"column:channel_id;not null" json:"channel_id"`
	RUC          string    `gorm:"column:ruc;size:20;not null" json:"ruc"`
	BusinessName string    `gorm:"column:business_name;size:255;not null" json:"business_name"`
	Status       Status    `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	CurrentStep  int       `gorm:"column:current_step;not null;default:0" json:"current_step"`
	CreatedBy    string    `gorm:"column:created_by;size:64;not null" json:"created_by"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Affiliation) TableName() string { return "t_affiliation" }
