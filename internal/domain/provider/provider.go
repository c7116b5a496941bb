package provider

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

func (s Status) Valid() bool { return s == StatusSuccess || s == StatusError }

const (
	ErrorCodeTimeout     = "PROVIDER_TIMEOUT"
	ErrorCodeUnavailable = "PROVIDER_UNAVAILABLE"
)

// CheckInput is what a named check runs against.
type CheckInput struct {
	Code           string `json:"validation_code"`
	DocumentNumber string `json:"document_number"`
	DocumentType   string `json:"document_type"`
	AccountNumber  string `json:"account_number"`
	ProductID      uint64 `json:"product_id"`
	ChannelID      uint64 `json:"channel_id"`
}

// Outcome is the structured answer of a check. ResponseJSON is kept verbatim for
// audit; its shape depends on the check code.
type Outcome struct {
	ProviderCode string `json:"provider_code"`
	Status       Status `json:"status"`
	ResponseJSON string `json:"response_json"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

// Result pairs a check with its outcome; it is the unit the engine ingests.
type Result struct {
	Input   CheckInput `json:"input"`
	Outcome Outcome    `json:"outcome"`
}

// Provider runs a named check. Implementations must be safe to call repeatedly.
type Provider interface {
	Check(ctx context.Context, in CheckInput) (Outcome, error)
}

// Call runs p.Check under timeout. Transport failures and timeouts come back as
// error outcomes, never as errors.
func Call(ctx context.Context, p Provider, in CheckInput, timeout time.Duration) Outcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := p.Check(ctx, in)
	if err == nil {
		return out
	}
	code := ErrorCodeUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrorCodeTimeout
	}
	return Outcome{
		ProviderCode: out.ProviderCode,
		Status:       StatusError,
		ResponseJSON: "{}",
		ErrorMessage: err.Error(),
		ErrorCode:    code,
	}
}
