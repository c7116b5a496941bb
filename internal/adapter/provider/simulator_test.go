package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	domprov "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
)

func TestSimulator_Rules(t *testing.T) {
	sim := NewSimulator()
	sim.newID = func() string { return "tx-1" }

	tests := []struct {
		name      string
		in        domprov.CheckInput
		status    domprov.Status
		msg       string
		fieldKey  string
		fieldWant any
	}{
		{"plaft medium", domprov.CheckInput{Code: "PLAFT_RISK", DocumentNumber: MediumRiskDocument}, domprov.StatusSuccess, "Medium risk detected. Requires manual review.", "risk_level", "medium"},
		{"plaft low", domprov.CheckInput{Code: "PLAFT_RISK", DocumentNumber: "20123456789"}, domprov.StatusSuccess, "", "risk_level", "low"},
		{"blacklisted", domprov.CheckInput{Code: "BLACKLIST_MATCH", DocumentNumber: BlacklistedDocument}, domprov.StatusError, "Document found in internal blacklist", "match", true},
		{"not blacklisted", domprov.CheckInput{Code: "BLACKLIST_MATCH", DocumentNumber: "1"}, domprov.StatusSuccess, "", "match", false},
		{"inactive account", domprov.CheckInput{Code: "BANK_ACCOUNT_CHECK", AccountNumber: "191-000"}, domprov.StatusError, "Bank account does not exist or is inactive.", "valid", false},
		{"valid account", domprov.CheckInput{Code: "BANK_ACCOUNT_CHECK", AccountNumber: "191-123"}, domprov.StatusSuccess, "", "valid", true},
		{"other code", domprov.CheckInput{Code: "RUC_INVALID"}, domprov.StatusSuccess, "", "transaction_id", "tx-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sim.Check(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if out.ProviderCode != SimulatorCode {
				t.Fatalf("provider code = %q", out.ProviderCode)
			}
			if out.Status != tt.status || out.ErrorMessage != tt.msg {
				t.Fatalf("got (%s, %q), want (%s, %q)", out.Status, out.ErrorMessage, tt.status, tt.msg)
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(out.ResponseJSON), &payload); err != nil {
				t.Fatalf("response is not json: %v", err)
			}
			if payload[tt.fieldKey] != tt.fieldWant {
				t.Fatalf("%s = %v, want %v", tt.fieldKey, payload[tt.fieldKey], tt.fieldWant)
			}
		})
	}
}

func TestSimulator_CancelledContextBecomesUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := domprov.Call(ctx, NewSimulator(), domprov.CheckInput{Code: "PLAFT_RISK"}, time.Second)
	if out.Status != domprov.StatusError || out.ErrorCode != domprov.ErrorCodeUnavailable {
		t.Fatalf("expected unavailable error outcome, got %+v", out)
	}
	if out.ProviderCode != SimulatorCode {
		t.Fatalf("provider code lost: %q", out.ProviderCode)
	}
}
