// Package lifecycle holds the pure state rules of affiliation requests. Nothing in
// here touches storage; the use case layer applies these decisions inside a
// transaction.
package lifecycle

import (
	"encoding/json"
	"strings"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
)

// SystemActor is recorded when the engine itself changes state.
const SystemActor = "system"

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to request.Status) bool {
	switch from {
	case request.StatusPending:
		return to == request.StatusApproved || to == request.StatusRejected || to == request.StatusObserved
	case request.StatusObserved:
		return to == request.StatusPending || to == request.StatusApproved || to == request.StatusRejected || to == request.StatusObserved
	case request.StatusApproved, request.StatusRejected:
		return false
	}
	return false
}

// StatusWhenClear is the status a request takes once it has no pending observations.
func StatusWhenClear(autoApprove bool) request.Status {
	if autoApprove {
		return request.StatusApproved
	}
	return request.StatusPending
}

// AffiliationStatusFor mirrors a request status onto its affiliation.
func AffiliationStatusFor(s request.Status) affiliation.Status {
	switch s {
	case request.StatusApproved:
		return affiliation.StatusApproved
	case request.StatusRejected:
		return affiliation.StatusRejected
	case request.StatusObserved:
		return affiliation.StatusObserved
	default:
		return affiliation.StatusPending
	}
}

// ValidationStatusForResolution maps a reviewer's decision on a system observation
// onto its validation result.
func ValidationStatusForResolution(s observation.Status) validation.Status {
	switch s {
	case observation.StatusApproved:
		return validation.StatusPassed
	case observation.StatusRejected:
		return validation.StatusFailed
	default:
		return validation.StatusObserved
	}
}

// RiskPolicy decides which successful outcomes still need a human look.
type RiskPolicy struct {
	Codes  map[string]bool
	Levels map[string]bool
}

func DefaultRiskPolicy() RiskPolicy {
	return NewRiskPolicy([]string{"PLAFT_RISK"}, []string{"medium", "high"})
}

func NewRiskPolicy(codes, levels []string) RiskPolicy {
	p := RiskPolicy{Codes: map[string]bool{}, Levels: map[string]bool{}}
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			p.Codes[strings.ToUpper(c)] = true
		}
	}
	for _, l := range levels {
		if l = strings.TrimSpace(l); l != "" {
			p.Levels[strings.ToLower(l)] = true
		}
	}
	return p
}

// Flagged reports whether a successful outcome of code carries a watched risk level.
// Payloads that do not parse are never flagged.
func (p RiskPolicy) Flagged(code string, o provider.Outcome) bool {
	if o.Status != provider.StatusSuccess || !p.Codes[strings.ToUpper(code)] {
		return false
	}
	var payload struct {
		RiskLevel string `json:"risk_level"`
	}
	if err := json.Unmarshal([]byte(o.ResponseJSON), &payload); err != nil {
		return false
	}
	return p.Levels[strings.ToLower(payload.RiskLevel)]
}

// ResultStatus is the validation result recorded for one ingested outcome.
func (p RiskPolicy) ResultStatus(r provider.Result) validation.Status {
	switch {
	case r.Outcome.Status == provider.StatusError:
		return validation.StatusFailed
	case p.Flagged(r.Input.Code, r.Outcome):
		return validation.StatusObserved
	default:
		return validation.StatusPassed
	}
}

type DecisionKind int

const (
	DecideReject DecisionKind = iota + 1
	DecideObserve
	DecideApprove
	DecideManualReview
)

func (k DecisionKind) String() string {
	switch k {
	case DecideReject:
		return "rejected"
	case DecideObserve:
		return "observed"
	case DecideApprove:
		return "approved"
	case DecideManualReview:
		return "manual_review"
	}
	return "unknown"
}

// Decision is the outcome of ingesting a batch of provider results.
type Decision struct {
	Kind    DecisionKind
	Next    request.Status
	Failing []provider.Result
	Flagged []provider.Result
}

// Decide applies the ingestion precedence: error, then risk flag, then
// auto-approve, then manual review. pendingObservations keeps an already observed
// request from being approved by a clean batch; with none left, manual review
// puts the request back to pending.
func Decide(results []provider.Result, p RiskPolicy, autoApprove bool, current request.Status, pendingObservations int64) Decision {
	var d Decision
	for _, r := range results {
		if r.Outcome.Status == provider.StatusError {
			d.Failing = append(d.Failing, r)
		}
	}
	if len(d.Failing) > 0 {
		d.Kind, d.Next = DecideReject, request.StatusRejected
		return d
	}
	for _, r := range results {
		if p.Flagged(r.Input.Code, r.Outcome) {
			d.Flagged = append(d.Flagged, r)
		}
	}
	if len(d.Flagged) > 0 {
		d.Kind, d.Next = DecideObserve, request.StatusObserved
		return d
	}
	if autoApprove && pendingObservations == 0 {
		d.Kind, d.Next = DecideApprove, request.StatusApproved
		return d
	}
	d.Kind, d.Next = DecideManualReview, current
	if pendingObservations == 0 {
		d.Next = request.StatusPending
	}
	return d
}

// Codes lists the check codes of results, in order.
func Codes(results []provider.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Input.Code)
	}
	return out
}
