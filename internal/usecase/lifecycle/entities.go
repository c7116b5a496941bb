package lifecycle

import (
	"time"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
)

type IngestInput struct {
	RequestID uint64
	Results   []provider.Result
	Actor     string // triggered_by on validation attempts; defaults to system
}

type IngestDTO struct {
	RequestID           uint64         `json:"request_id"`
	Decision            string         `json:"decision"`
	PreviousStatus      request.Status `json:"previous_status"`
	Status              request.Status `json:"status"`
	ObservationIDs      []uint64       `json:"observation_ids,omitempty"`
	ProviderResponseIDs []uint64       `json:"provider_response_ids"`
}

type AddObservationInput struct {
	RequestID         uint64
	ObservationTypeID uint64
	CauseIDs          []uint64
	Comment           string
	Actor             string
}

type ResolveObservationInput struct {
	ObservationID uint64
	Resolution    observation.Resolution
	Actor         string
}

type RejectObservationInput struct {
	ObservationID uint64
	Actor         string
}

type RetryObservationInput struct {
	ObservationID uint64
	Actor         string
}

type ResolveRequestInput struct {
	RequestID uint64
	Status    request.Status // approved | rejected
	Actor     string
}

type ObservationDTO struct {
	ID                uint64             `json:"id"`
	RequestID         uint64             `json:"affiliation_request_id"`
	ObservationTypeID uint64             `json:"observation_type_id"`
	TypeCode          string             `json:"type_code"`
	Kind              observation.Kind   `json:"type"`
	Status            observation.Status `json:"status"`
	Comment           *string            `json:"comment,omitempty"`
	CauseIDs          []uint64           `json:"cause_ids,omitempty"`
	CreatedBy         string             `json:"created_by"`
	ReviewedBy        *string            `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time         `json:"reviewed_at,omitempty"`
	RequestStatus     request.Status     `json:"request_status"`
}

type RetryDTO struct {
	Observation        ObservationDTO `json:"observation"`
	ProviderResponseID uint64         `json:"provider_response_id"`
	AttemptNumber      int            `json:"attempt_number"`
}

type RequestDTO struct {
	ID            uint64         `json:"id"`
	AffiliationID string         `json:"affiliation_id"`
	Status        request.Status `json:"status"`
	ReviewedBy    *string        `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
}

func toObservationDTO(o *observation.Observation, t *observation.Type, causeIDs []uint64, reqStatus request.Status) *ObservationDTO {
	dto := &ObservationDTO{
		ID:                o.ID,
		RequestID:         o.AffiliationRequestID,
		ObservationTypeID: o.ObservationTypeID,
		Status:            o.Status,
		Comment:           o.Comment,
		CauseIDs:          causeIDs,
		CreatedBy:         o.CreatedBy,
		ReviewedBy:        o.ReviewedBy,
		ReviewedAt:        o.ReviewedAt,
		RequestStatus:     reqStatus,
	}
	if t != nil {
		dto.TypeCode = t.Code
		dto.Kind = t.Kind
	}
	return dto
}

func toRequestDTO(r *request.AffiliationRequest) *RequestDTO {
	return &RequestDTO{
		ID:            r.ID,
		AffiliationID: r.AffiliationID,
		Status:        r.Status,
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    r.ReviewedAt,
	}
}
