package observation

import "time"

type Kind string

const (
	KindManual Kind = "manual"
	KindSystem Kind = "system"
)

func (k Kind) Valid() bool { return k == KindManual || k == KindSystem }

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusIgnored  Status = "ignored"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusIgnored:
		return true
	}
	return false
}

// Resolution is the subset of statuses a reviewer may resolve an observation to.
type Resolution string

const (
	ResolveApproved Resolution = "approved"
	ResolveIgnored  Resolution = "ignored"
)

func (r Resolution) Valid() bool { return r == ResolveApproved || r == ResolveIgnored }

func (r Resolution) Status() Status {
	if r == ResolveApproved {
		return StatusApproved
	}
	return StatusIgnored
}

// Type is a catalog entry. System types map 1:1 onto an automated check code.
type Type struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"column:code;size:64;not null;uniqueIndex:ux_observation_type_code" json:"code"`
	Title     string    `gorm:"column:title;size:255;not null" json:"title"`
	Label     *string   `gorm:"column:label;size:255" json:"label,omitempty"`
	Kind      Kind      `gorm:"column:type;type:varchar(16);not null" json:"type"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Causes []Cause `gorm:"foreignKey:ObservationTypeID" json:"causes,omitempty"`
}

func (Type) TableName() string { return "t_affiliation_observation_type" }

type Cause struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ObservationTypeID uint64    `gorm:"column:observation_type_id;not null;index" json:"observation_type_id"`
	Label             string    `gorm:"column:label;size:255;not null" json:"label"`
	IsActive          bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Cause) TableName() string { return "t_affiliation_observation_cause" }

// ProductType links a product to the observation types that apply to it.
type ProductType struct {
	ProductID         uint64 `gorm:"column:product_id;primaryKey;autoIncrement:false"`
	ObservationTypeID uint64 `gorm:"column:observation_type_id;primaryKey;autoIncrement:false"`
}

func (ProductType) TableName() string { return "t_product_observation_type" }

// Observation is a flagged issue blocking a request's finalization.
type Observation struct {
	ID                   uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AffiliationRequestID uint64     `gorm:"column:affiliation_request_id;not null;index" json:"affiliation_request_id"`
	ObservationTypeID    uint64     `gorm:"column:observation_type_id;not null" json:"observation_type_id"`
	Comment              *string    `gorm:"column:comment;type:text" json:"comment,omitempty"`
	Status               Status     `gorm:"column:status;type:varchar(16);not null;default:'pending';index" json:"status"`
	ReviewedBy           *string    `gorm:"column:reviewed_by;size:64" json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedBy            string     `gorm:"column:created_by;size:64;not null" json:"created_by"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Type *Type `gorm:"foreignKey:ObservationTypeID" json:"observation_type,omitempty"`
}

func (Observation) TableName() string { return "t_affiliation_observation" }

func (o *Observation) MarkReviewed(s Status, by string, at time.Time) {
	o.Status = s
	o.ReviewedBy = &by
	o.ReviewedAt = &at
}

type SelectedCause struct {
	ObservationID uint64 `gorm:"column:affiliation_observation_id;primaryKey;autoIncrement:false"`
	CauseID       uint64 `gorm:"column:observation_cause_id;primaryKey;autoIncrement:false"`

	Cause *Cause `gorm:"foreignKey:CauseID" json:"cause,omitempty"`
}

func (SelectedCause) TableName() string { return "t_affiliation_observation_selected_cause" }
