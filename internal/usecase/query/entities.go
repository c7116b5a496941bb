package query

import (
	"time"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
)

type ResultView struct {
	ID                uint64            `json:"id"`
	ObservationTypeID uint64            `json:"observation_type_id"`
	Code              string            `json:"code"`
	Status            validation.Status `json:"status"`
	Comment           string            `json:"comment"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type AffiliationView struct {
	ID           string             `json:"id"`
	CustomerID   string             `json:"customer_id"`
	ProductID    uint64             `json:"product_id"`
	ChannelID    uint64             `json:"channel_id"`
	RUC          string             `json:"ruc"`
	BusinessName string             `json:"business_name"`
	Status       affiliation.Status `json:"status"`
	CurrentStep  int                `json:"current_step"`
	CreatedBy    string             `json:"created_by"`
	CreatedAt    time.Time          `json:"created_at"`
	Results      []ResultView       `json:"validation_results,omitempty"`
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	Status        request.Status
	AffiliationID string
}

type RequestView struct {
	ID                  uint64         `json:"id"`
	AffiliationID       string         `json:"affiliation_id"`
	BusinessName        string         `json:"business_name"`
	RUC                 string         `json:"ruc"`
	ProductID           uint64         `json:"product_id"`
	RequestConfigID     uint64         `json:"request_config_id"`
	RequestConfigName   string         `json:"request_config_name"`
	AutoApprove         bool           `json:"auto_approve"`
	Status              request.Status `json:"status"`
	CreatedBy           string         `json:"created_by"`
	ReviewedBy          *string        `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	PendingObservations int64          `json:"pending_observations"`

	// CanBeObserved is true when the product has manual types a reviewer may raise.
	CanBeObserved bool `json:"can_be_observed"`
}

type ObservationView struct {
	ID         uint64             `json:"id"`
	RequestID  uint64             `json:"affiliation_request_id"`
	TypeID     uint64             `json:"observation_type_id"`
	Code       string             `json:"code"`
	Kind       observation.Kind   `json:"type"`
	Title      string             `json:"title"`
	Label      *string            `json:"label,omitempty"`
	Status     observation.Status `json:"status"`
	Comment    *string            `json:"comment,omitempty"`
	CreatedBy  string             `json:"created_by"`
	ReviewedBy *string            `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	Retriable  bool               `json:"retriable"`
}

type CauseView struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

type AttemptView struct {
	ID                 uint64            `json:"id"`
	AttemptNumber      int               `json:"attempt_number"`
	Status             validation.Status `json:"status"`
	Comment            string            `json:"comment"`
	TriggeredBy        string            `json:"triggered_by"`
	CreatedAt          time.Time         `json:"created_at"`
	ProviderResponseID *uint64           `json:"provider_response_id,omitempty"`
	ProviderCode       string            `json:"provider_code,omitempty"`
	ProviderStatus     provider.Status   `json:"provider_status,omitempty"`
	ResponseJSON       string            `json:"response_json,omitempty"`
}

type ValidationHistoryView struct {
	Result   ResultView    `json:"validation_result"`
	Attempts []AttemptView `json:"attempts"`
}

func toResultView(r validation.Result) ResultView {
	return ResultView{
		ID:                r.ID,
		ObservationTypeID: r.ObservationTypeID,
		Code:              r.Code,
		Status:            r.Status,
		Comment:           r.Comment,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toAffiliationView(a affiliation.Affiliation) AffiliationView {
	return AffiliationView{
		ID:           a.ID,
		CustomerID:   a.CustomerID,
		ProductID:    a.ProductID,
		ChannelID:    a.ChannelID,
		RUC:          a.RUC,
		BusinessName: a.BusinessName,
		Status:       a.Status,
		CurrentStep:  a.CurrentStep,
		CreatedBy:    a.CreatedBy,
		CreatedAt:    a.CreatedAt,
	}
}

func toObservationView(o observation.Observation) ObservationView {
	v := ObservationView{
		ID:         o.ID,
		RequestID:  o.AffiliationRequestID,
		TypeID:     o.ObservationTypeID,
		Status:     o.Status,
		Comment:    o.Comment,
		CreatedBy:  o.CreatedBy,
		ReviewedBy: o.ReviewedBy,
		ReviewedAt: o.ReviewedAt,
		CreatedAt:  o.CreatedAt,
	}
	if o.Type != nil {
		v.Code = o.Type.Code
		v.Kind = o.Type.Kind
		v.Title = o.Type.Title
		v.Label = o.Type.Label
	}
	v.Retriable = v.Kind == observation.KindSystem && o.Status == observation.StatusPending
	return v
}

func toAttemptView(h validation.History) AttemptView {
	v := AttemptView{
		ID:                 h.ID,
		AttemptNumber:      h.AttemptNumber,
		Status:             h.Status,
		Comment:            h.Comment,
		TriggeredBy:        h.TriggeredBy,
		CreatedAt:          h.CreatedAt,
		ProviderResponseID: h.ProviderResponseID,
	}
	if pr := h.ProviderResponse; pr != nil {
		v.ProviderCode = pr.ProviderCode
		v.ProviderStatus = pr.Status
		v.ResponseJSON = pr.ResponseJSON
	}
	return v
}
