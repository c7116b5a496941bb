package onboarding

import (
	"time"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/lifecycle"
)

type CreateAffiliationInput struct {
	BusinessName string
	RUC          string
	ProductID    uint64
	ChannelID    uint64
	CustomerID   string // optional; generated when empty
	Actor        string
}

// StepOutcome is what an onboarding step reports for one check.
type StepOutcome string

const (
	StepApproved StepOutcome = "approved"
	StepRejected StepOutcome = "rejected"
	StepObserved StepOutcome = "observed"
)

func (o StepOutcome) ValidationStatus() (validation.Status, bool) {
	switch o {
	case StepApproved:
		return validation.StatusPassed, true
	case StepRejected:
		return validation.StatusFailed, true
	case StepObserved:
		return validation.StatusObserved, true
	}
	return "", false
}

type StepValidationInput struct {
	AffiliationID string
	Code          string
	Outcome       StepOutcome
	Comment       string
	NextStep      int
	Actor         string
}

type SubmitInput struct {
	AffiliationID string
	AccountNumber string // only the bank account check reads it
	Actor         string
}

type AffiliationDTO struct {
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
}

type StepValidationDTO struct {
	AffiliationID      string            `json:"affiliation_id"`
	ResultID           uint64            `json:"validation_result_id"`
	Code               string            `json:"code"`
	Status             validation.Status `json:"status"`
	AttemptNumber      int               `json:"attempt_number"`
	ProviderResponseID uint64            `json:"provider_response_id"`
	CurrentStep        int               `json:"current_step"`
}

type FinalizeDTO struct {
	AffiliationID     string             `json:"affiliation_id"`
	AffiliationStatus affiliation.Status `json:"affiliation_status"`
	RequestID         *uint64            `json:"request_id,omitempty"`
	RequestStatus     *request.Status    `json:"request_status,omitempty"`
	ObservationIDs    []uint64           `json:"observation_ids,omitempty"`
}

type OpenRequestDTO struct {
	RequestID     uint64         `json:"request_id"`
	AffiliationID string         `json:"affiliation_id"`
	Status        request.Status `json:"status"`
	Created       bool           `json:"created"`
}

type SubmitDTO struct {
	RequestID uint64               `json:"request_id"`
	Checks    []string             `json:"checks"`
	Outcome   *lifecycle.IngestDTO `json:"outcome"`
}

func toAffiliationDTO(a *affiliation.Affiliation) *AffiliationDTO {
	return &AffiliationDTO{
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
