package request

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

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

type EventType string

const (
	EventStatusChange              EventType = "status_change"
	EventObservationUpdate         EventType = "observation_update"
	EventInfoUpdate                EventType = "info_update"
	EventSimulation                EventType = "simulation"
	EventAutomaticObservationRetry EventType = "automatic_observation_retry"
	EventRequestCreated            EventType = "request_created"
	EventRequestApproved           EventType = "request_approved"
	EventObservationResolved       EventType = "observation_resolved"
)

// AffiliationRequest is the unit of manual review for one affiliation.
type AffiliationRequest struct {
	ID              uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AffiliationID   string     `gorm:"column:affiliation_id;type:char(32);not null;index" json:"affiliation_id"`
	RequestConfigID uint64     `gorm:"column:request_config_id;not null" json:"request_config_id"`
	Status          Status     `gorm:"column:status;type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedBy       string     `gorm:"column:created_by;size:64;not null" json:"created_by"`
	ReviewedBy      *string    `gorm:"column:reviewed_by;size:64" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AffiliationRequest) TableName() string { return "t_affiliation_request" }

// MarkReviewed moves the request to s and stamps the reviewer.
func (r *AffiliationRequest) MarkReviewed(s Status, by string, at time.Time) {
	r.Status = s
	r.ReviewedBy = &by
	r.ReviewedAt = &at
}

// History is the append-only audit trail of a request. Previous/new status hold
// whichever entity status the event describes (request or observation).
type History struct {
	ID                   uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AffiliationRequestID uint64    `gorm:"column:affiliation_request_id;not null;index" json:"affiliation_request_id"`
	EventType            EventType `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	Details              string    `gorm:"column:details;type:text" json:"details"`
	PreviousStatus       *string   `gorm:"column:previous_status;type:varchar(16)" json:"previous_status,omitempty"`
	NewStatus            *string   `gorm:"column:new_status;type:varchar(16)" json:"new_status,omitempty"`
	ChangedBy            string    `gorm:"column:changed_by;size:64;not null" json:"changed_by"`
	ChangedAt            time.Time `gorm:"column:changed_at;not null" json:"changed_at"`
}

func (History) TableName() string { return "t_affiliation_request_history" }
