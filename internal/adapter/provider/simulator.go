// Package provider holds Provider implementations.
package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	domprov "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
)

const SimulatorCode = "SIMULATED_PROVIDER"

// Documents and accounts the simulator reacts to.
const (
	MediumRiskDocument   = "87654321"
	BlacklistedDocument  = "12345678"
	InvalidAccountSuffix = "000"
)

// Simulator is a deterministic stand-in for the external validation services.
//
// Response payloads per code:
//
//	PLAFT_RISK          {"risk_level": "low"|"medium", "details"?: string}
//	BLACKLIST_MATCH     {"match": bool, "list"?: string}
//	BANK_ACCOUNT_CHECK  {"valid": bool, "reason_code"?: string}
//	anything else       {}
//
// Every payload also carries "transaction_id".
type Simulator struct {
	newID func() string
}

func NewSimulator() *Simulator {
	return &Simulator{newID: func() string { return uuid.NewString() }}
}

func (s *Simulator) Check(ctx context.Context, in domprov.CheckInput) (domprov.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domprov.Outcome{ProviderCode: SimulatorCode}, err
	}

	status := domprov.StatusSuccess
	payload := map[string]any{}
	var msg string

	switch in.Code {
	case "PLAFT_RISK":
		if in.DocumentNumber == MediumRiskDocument {
			payload["risk_level"] = "medium"
			payload["details"] = "Possible match with a politically exposed person (PEP)."
			msg = "Medium risk detected. Requires manual review."
		} else {
			payload["risk_level"] = "low"
		}
	case "BLACKLIST_MATCH":
		if in.DocumentNumber == BlacklistedDocument {
			status = domprov.StatusError
			payload["match"] = true
			payload["list"] = "Internal"
			msg = "Document found in internal blacklist"
		} else {
			payload["match"] = false
		}
	case "BANK_ACCOUNT_CHECK":
		if in.AccountNumber != "" && strings.HasSuffix(in.AccountNumber, InvalidAccountSuffix) {
			status = domprov.StatusError
			payload["valid"] = false
			payload["reason_code"] = "INACTIVE_ACCOUNT"
			msg = "Bank account does not exist or is inactive."
		} else {
			payload["valid"] = true
		}
	}
	payload["transaction_id"] = s.newID()

	b, err := json.Marshal(payload)
	if err != nil {
		return domprov.Outcome{ProviderCode: SimulatorCode}, err
	}
	return domprov.Outcome{
		ProviderCode: SimulatorCode,
		Status:       status,
		ResponseJSON: string(b),
		ErrorMessage: msg,
	}, nil
}
