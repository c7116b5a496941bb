package validation

import (
	"time"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
)

type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusObserved Status = "observed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusObserved:
		return true
	}
	return false
}

// Result is the latest outcome of one check against one affiliation.
type Result struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AffiliationID     string    `gorm:"column:affiliation_id;type:char(32);not null;uniqueIndex:ux_validation_result_pair,priority:1" json:"affiliation_id"`
	ObservationTypeID uint64    `gorm:"column:observation_type_id;not null;uniqueIndex:ux_validation_result_pair,priority:2" json:"observation_type_id"`
	Code              string    `gorm:"column:code;size:64;not null" json:"code"`
	Status            Status    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Comment           string    `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Result) TableName() string { return "t_affiliation_validation_result" }

// History is the append-only ledger of attempts for a Result.
type History struct {
	ID                 uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ValidationResultID uint64    `gorm:"column:validation_result_id;not null;uniqueIndex:ux_validation_history_attempt,priority:1" json:"validation_result_id"`
	ProviderResponseID *uint64   `gorm:"column:provider_response_id" json:"provider_response_id,omitempty"`
	AttemptNumber      int       `gorm:"column:attempt_number;not null;uniqueIndex:ux_validation_history_attempt,priority:2" json:"attempt_number"`
	Status             Status    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Comment            string    `gorm:"column:comment;type:text" json:"comment"`
	TriggeredBy        string    `gorm:"column:triggered_by;size:64;not null" json:"triggered_by"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	ProviderResponse *ProviderResponse `gorm:"foreignKey:ProviderResponseID" json:"provider_response,omitempty"`
}

func (History) TableName() string { return "t_affiliation_validation_history" }

// ProviderResponse is the raw record of one external call.
type ProviderResponse struct {
	ID             uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProviderCode   string          `gorm:"column:provider_code;size:64;not null" json:"provider_code"`
	ValidationCode string          `gorm:"column:validation_code;size:64;not null;index" json:"validation_code"`
	DocumentNumber string          `gorm:"column:document_number;size:32" json:"document_number"`
	DocumentType   string          `gorm:"column:document_type;size:16" json:"document_type"`
	AccountNumber  string          `gorm:"column:account_number;size:64" json:"account_number"`
	ProductID      uint64          `gorm:"column:product_id" json:"product_id"`
	ChannelID      uint64          `gorm:"column:channel_id" json:"channel_id"`
	Status         provider.Status `gorm:"column:status;type:varchar(16);not null" json:"status"`
	ErrorMessage   *string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ErrorCode      *string         `gorm:"column:error_code;size:64" json:"error_code,omitempty"`
	ResponseJSON   string          `gorm:"column:response_json;type:text" json:"response_json"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ProviderResponse) TableName() string { return "t_validation_provider_response" }

// NewProviderResponse builds the audit row for r.
func NewProviderResponse(r provider.Result) *ProviderResponse {
	pr := &ProviderResponse{
		ProviderCode:   r.Outcome.ProviderCode,
		ValidationCode: r.Input.Code,
		DocumentNumber: r.Input.DocumentNumber,
		DocumentType:   r.Input.DocumentType,
		AccountNumber:  r.Input.AccountNumber,
		ProductID:      r.Input.ProductID,
		ChannelID:      r.Input.ChannelID,
		Status:         r.Outcome.Status,
		ResponseJSON:   r.Outcome.ResponseJSON,
	}
	if pr.ProviderCode == "" {
		pr.ProviderCode = "UNKNOWN"
	}
	if pr.ResponseJSON == "" {
		pr.ResponseJSON = "{}"
	}
	if r.Outcome.ErrorMessage != "" {
		msg := r.Outcome.ErrorMessage
		pr.ErrorMessage = &msg
	}
	if r.Outcome.ErrorCode != "" {
		code := r.Outcome.ErrorCode
		pr.ErrorCode = &code
	}
	return pr
}
