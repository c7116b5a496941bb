package lifecycle

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/adapter/repository/sqlstore"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/product"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/testutil/dbtest"
)

const ruc = "20123456789"

type fakeProvider struct {
	mu      sync.Mutex
	outcome provider.Outcome
	err     error
	block   bool
	calls   []provider.CheckInput
}

func (f *fakeProvider) Check(ctx context.Context, in provider.CheckInput) (provider.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	out, err, block := f.outcome, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return provider.Outcome{}, ctx.Err()
	}
	return out, err
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) { return nil, domain.ErrBusy }

// world is a seeded database with one manual-review product and one
// auto-approve product, both linked to the same catalog.
type world struct {
	db     *gorm.DB
	seed   *dbtest.Seeder
	prov   *fakeProvider
	manual struct {
		product *product.Product
		config  *product.RequestConfig
	}
	auto struct {
		product *product.Product
		config  *product.RequestConfig
	}
	plaft     *observation.Type
	blacklist *observation.Type
	web       *observation.Type
	other     *observation.Type
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{db: dbtest.Open(t), prov: &fakeProvider{}}
	w.seed = dbtest.NewSeeder(t, w.db)
	w.manual.product, w.manual.config = w.seed.Product("CulqiOnline", false)
	w.auto.product, w.auto.config = w.seed.Product("CulqiFull", true)
	both := []uint64{w.manual.product.ID, w.auto.product.ID}
	w.plaft = w.seed.Type("PLAFT_RISK", observation.KindSystem, nil, both...)
	w.blacklist = w.seed.Type("BLACKLIST_MATCH", observation.KindSystem, nil, both...)
	w.web = w.seed.Type("WEB_INCOMPLETE", observation.KindManual, []string{"Under construction", "Broken links", "No contact"}, both...)
	w.other = w.seed.Type("WEB_NO_ECOMMERCE", observation.KindManual, []string{"No cart"}, both...)
	return w
}

func (w *world) usecase(opts ...Option) *Usecase {
	opts = append([]Option{WithProviderTimeout(time.Second)}, opts...)
	return NewUsecase(sqlstore.NewGormUoW(w.db), w.prov, opts...)
}

func (w *world) request(t *testing.T, auto bool, s request.Status) (*affiliation.Affiliation, *request.AffiliationRequest) {
	t.Helper()
	p, c := w.manual.product, w.manual.config
	if auto {
		p, c = w.auto.product, w.auto.config
	}
	a := w.seed.Affiliation(p.ID, ruc)
	return a, w.seed.Request(a, c, s)
}

func (w *world) reload(t *testing.T, req *request.AffiliationRequest) (*request.AffiliationRequest, *affiliation.Affiliation) {
	t.Helper()
	var r request.AffiliationRequest
	require.NoError(t, w.db.First(&r, req.ID).Error)
	var a affiliation.Affiliation
	require.NoError(t, w.db.Where("id = ?", r.AffiliationID).First(&a).Error)
	return &r, &a
}

func (w *world) history(t *testing.T, requestID uint64) []request.History {
	t.Helper()
	var out []request.History
	require.NoError(t, w.db.Where("affiliation_request_id = ?", requestID).Order("id").Find(&out).Error)
	return out
}

func (w *world) attempts(t *testing.T, resultID uint64) []validation.History {
	t.Helper()
	var out []validation.History
	require.NoError(t, w.db.Where("validation_result_id = ?", resultID).Order("attempt_number").Find(&out).Error)
	return out
}

func (w *world) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, w.db.Model(model).Count(&n).Error)
	return n
}

func (w *world) result(t *testing.T, affID string, typ *observation.Type) *validation.Result {
	t.Helper()
	var r validation.Result
	require.NoError(t, w.db.Where("affiliation_id = ? AND observation_type_id = ?", affID, typ.ID).First(&r).Error)
	return &r
}

func success(code, payload string) provider.Result {
	return provider.Result{
		Input:   provider.CheckInput{Code: code, DocumentNumber: ruc, DocumentType: "RUC"},
		Outcome: provider.Outcome{ProviderCode: "TEST", Status: provider.StatusSuccess, ResponseJSON: payload},
	}
}

func failure(code, msg string) provider.Result {
	return provider.Result{
		Input:   provider.CheckInput{Code: code, DocumentNumber: ruc, DocumentType: "RUC"},
		Outcome: provider.Outcome{ProviderCode: "TEST", Status: provider.StatusError, ResponseJSON: "{}", ErrorMessage: msg},
	}
}

func mediumRisk() provider.Result {
	r := success("PLAFT_RISK", `{"risk_level":"medium","details":"PEP"}`)
	r.Outcome.ErrorMessage = "Medium risk detected. Requires manual review."
	return r
}

// ---- ingestion ----

func TestIngest_ErrorOutcomeRejects(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, true, request.StatusPending)

	dto, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{failure("BLACKLIST_MATCH", "Document found in internal blacklist"), mediumRisk()},
	})
	require.NoError(t, err)
	assert.Equal(t, "rejected", dto.Decision)
	assert.Len(t, dto.ProviderResponseIDs, 2)
	assert.Empty(t, dto.ObservationIDs)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusRejected, r.Status)
	assert.Equal(t, affiliation.StatusRejected, aff.Status)
	assert.Equal(t, domain.SystemActor, *r.ReviewedBy)
	assert.Zero(t, w.count(t, &observation.Observation{}))
	assert.EqualValues(t, 2, w.count(t, &validation.ProviderResponse{}))

	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, request.EventStatusChange, hist[0].EventType)
	assert.Equal(t, "Request automatically rejected due to validation errors: BLACKLIST_MATCH", hist[0].Details)
	assert.Equal(t, "pending", *hist[0].PreviousStatus)
	assert.Equal(t, "rejected", *hist[0].NewStatus)

	bl := w.result(t, a.ID, w.blacklist)
	assert.Equal(t, validation.StatusFailed, bl.Status)
	attempts := w.attempts(t, bl.ID)
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.NotNil(t, attempts[0].ProviderResponseID)
}

func TestIngest_RiskFlagObserves(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, true, request.StatusPending)

	dto, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{mediumRisk(), success("BLACKLIST_MATCH", `{"match":false}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "observed", dto.Decision)
	require.Len(t, dto.ObservationIDs, 1)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusObserved, r.Status)
	assert.Equal(t, affiliation.StatusObserved, aff.Status)

	var o observation.Observation
	require.NoError(t, w.db.First(&o, dto.ObservationIDs[0]).Error)
	assert.Equal(t, w.plaft.ID, o.ObservationTypeID)
	assert.Equal(t, observation.StatusPending, o.Status)
	assert.Equal(t, domain.SystemActor, o.CreatedBy)
	require.NotNil(t, o.Comment)
	assert.Equal(t, "Medium risk detected. Requires manual review.", *o.Comment)

	assert.Equal(t, validation.StatusObserved, w.result(t, a.ID, w.plaft).Status)
	assert.Equal(t, validation.StatusPassed, w.result(t, a.ID, w.blacklist).Status)

	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, "Request automatically observed due to validation results: PLAFT_RISK", hist[0].Details)
}

func TestIngest_AutoApprove(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, true, request.StatusPending)

	dto, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{success("PLAFT_RISK", `{"risk_level":"low"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", dto.Decision)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusApproved, r.Status)
	assert.Equal(t, affiliation.StatusApproved, aff.Status)
	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, "Request automatically approved based on product configuration.", hist[0].Details)
}

func TestIngest_ManualReviewStaysPending(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusPending)

	dto, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{success("PLAFT_RISK", `{"risk_level":"low"}`), success("BLACKLIST_MATCH", `{"match":false}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "manual_review", dto.Decision)
	assert.Equal(t, request.StatusPending, dto.Status)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusPending, r.Status)
	assert.Nil(t, r.ReviewedBy)
	assert.Equal(t, affiliation.StatusPending, aff.Status)

	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, request.EventInfoUpdate, hist[0].EventType)
	assert.Equal(t, "All validations passed. Request is pending manual review.", hist[0].Details)
	assert.Nil(t, hist[0].PreviousStatus)
	assert.Nil(t, hist[0].NewStatus)
}

func TestIngest_ManualReviewReturnsClearedObservedToPending(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusObserved)
	w.seed.Observation(req, w.web, observation.StatusApproved)

	dto, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{success("PLAFT_RISK", `{"risk_level":"low"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "manual_review", dto.Decision)
	assert.Equal(t, request.StatusObserved, dto.PreviousStatus)
	assert.Equal(t, request.StatusPending, dto.Status)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusPending, r.Status)
	assert.Equal(t, affiliation.StatusPending, aff.Status)
	require.NotNil(t, r.ReviewedBy)
	assert.Equal(t, domain.SystemActor, *r.ReviewedBy)

	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, request.EventStatusChange, hist[0].EventType)
	assert.Equal(t, "observed", *hist[0].PreviousStatus)
	assert.Equal(t, "pending", *hist[0].NewStatus)
}

func TestIngest_PendingObservationsBlockAutoApprove(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, true, request.StatusObserved)
	w.seed.Observation(req, w.web, observation.StatusPending)

	dto, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{success("PLAFT_RISK", `{"risk_level":"low"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "manual_review", dto.Decision)
	r, _ := w.reload(t, req)
	assert.Equal(t, request.StatusObserved, r.Status)
}

func TestIngest_UnknownCodeIsSkipped(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, false, request.StatusPending)

	_, err := w.usecase().IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{success("SOMETHING_NEW", `{}`)},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, w.count(t, &validation.ProviderResponse{}))
	var n int64
	require.NoError(t, w.db.Model(&validation.Result{}).Where("affiliation_id = ?", a.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestIngest_FlaggedCodeWithoutTypeRollsBack(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusPending)
	uc := w.usecase(WithRiskPolicy(domain.NewRiskPolicy([]string{"SANCTIONS"}, []string{"high"})))

	_, err := uc.IngestValidationOutcome(context.Background(), IngestInput{
		RequestID: req.ID,
		Results:   []provider.Result{success("SANCTIONS", `{"risk_level":"high"}`)},
	})
	require.ErrorIs(t, err, domain.ErrDataIntegrity)

	r, _ := w.reload(t, req)
	assert.Equal(t, request.StatusPending, r.Status)
	assert.Zero(t, w.count(t, &validation.ProviderResponse{}), "provider responses must roll back")
	assert.Empty(t, w.history(t, req.ID))
}

func TestIngest_Guards(t *testing.T) {
	w := newWorld(t)
	_, done := w.request(t, false, request.StatusApproved)
	uc := w.usecase()
	in := []provider.Result{success("PLAFT_RISK", `{"risk_level":"low"}`)}

	_, err := uc.IngestValidationOutcome(context.Background(), IngestInput{RequestID: done.ID, Results: in})
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Zero(t, w.count(t, &validation.ProviderResponse{}))

	_, err = uc.IngestValidationOutcome(context.Background(), IngestInput{RequestID: 999, Results: in})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_AttemptsAreGapless(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, false, request.StatusPending)
	uc := w.usecase()

	for i := 0; i < 3; i++ {
		_, err := uc.IngestValidationOutcome(context.Background(), IngestInput{
			RequestID: req.ID,
			Results:   []provider.Result{success("PLAFT_RISK", `{"risk_level":"low"}`)},
		})
		require.NoError(t, err)
	}
	attempts := w.attempts(t, w.result(t, a.ID, w.plaft).ID)
	require.Len(t, attempts, 3)
	for i, h := range attempts {
		assert.Equal(t, i+1, h.AttemptNumber)
	}
}

// ---- manual observations ----

func TestAddManualObservation_RoundTrip(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusPending)
	c1, c2 := w.web.Causes[0].ID, w.web.Causes[2].ID

	dto, err := w.usecase().AddManualObservation(context.Background(), AddObservationInput{
		RequestID:         req.ID,
		ObservationTypeID: w.web.ID,
		CauseIDs:          []uint64{c2, c1, c2},
		Comment:           "site is a placeholder",
		Actor:             "analyst-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{c1, c2}, dto.CauseIDs)
	assert.Equal(t, request.StatusObserved, dto.RequestStatus)

	causes, err := sqlstore.NewObservationRepository(w.db).ListSelectedCauses(context.Background(), dto.ID)
	require.NoError(t, err)
	require.Len(t, causes, 2)
	assert.Equal(t, c1, causes[0].CauseID)
	assert.Equal(t, c2, causes[1].CauseID)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusObserved, r.Status)
	assert.Equal(t, "analyst-1", *r.ReviewedBy)
	assert.Equal(t, affiliation.StatusObserved, aff.Status)

	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, request.EventObservationUpdate, hist[0].EventType)
	assert.Equal(t, "Manual observation added: site is a placeholder", hist[0].Details)
	assert.Equal(t, "pending", *hist[0].PreviousStatus)
}

func TestAddManualObservation_NoCommentNoCauses(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusObserved)

	dto, err := w.usecase().AddManualObservation(context.Background(), AddObservationInput{
		RequestID: req.ID, ObservationTypeID: w.web.ID, Actor: "analyst-1",
	})
	require.NoError(t, err)
	assert.Nil(t, dto.Comment)
	assert.Empty(t, dto.CauseIDs)
	assert.Equal(t, "Manual observation added: No comment", w.history(t, req.ID)[0].Details)
}

func TestAddManualObservation_Guards(t *testing.T) {
	w := newWorld(t)
	_, open := w.request(t, false, request.StatusPending)
	_, done := w.request(t, false, request.StatusRejected)
	uc := w.usecase()
	ctx := context.Background()

	tests := []struct {
		name string
		in   AddObservationInput
		want error
	}{
		{"terminal request", AddObservationInput{RequestID: done.ID, ObservationTypeID: w.web.ID, Actor: "a"}, domain.ErrAlreadyFinalized},
		{"missing request", AddObservationInput{RequestID: 999, ObservationTypeID: w.web.ID, Actor: "a"}, domain.ErrNotFound},
		{"missing type", AddObservationInput{RequestID: open.ID, ObservationTypeID: 999, Actor: "a"}, domain.ErrNotFound},
		{"cause of another type", AddObservationInput{RequestID: open.ID, ObservationTypeID: w.web.ID, CauseIDs: []uint64{w.other.Causes[0].ID}, Actor: "a"}, domain.ErrInvalidInput},
		{"unknown cause", AddObservationInput{RequestID: open.ID, ObservationTypeID: w.web.ID, CauseIDs: []uint64{12345}, Actor: "a"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.AddManualObservation(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, w.count(t, &observation.Observation{}))
	assert.Zero(t, w.count(t, &observation.SelectedCause{}))
	r, _ := w.reload(t, open)
	assert.Equal(t, request.StatusPending, r.Status)
}

// ---- resolution ----

func TestResolveObservation_LastSystemObservationAutoApproves(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, true, request.StatusObserved)
	o := w.seed.Observation(req, w.plaft, observation.StatusPending)
	vr := w.seed.Result(a, w.plaft, validation.StatusObserved)

	dto, err := w.usecase().ResolveObservation(context.Background(), ResolveObservationInput{
		ObservationID: o.ID, Resolution: observation.ResolveApproved, Actor: "supervisor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, observation.StatusApproved, dto.Status)
	assert.Equal(t, request.StatusApproved, dto.RequestStatus)

	var got observation.Observation
	require.NoError(t, w.db.First(&got, o.ID).Error)
	assert.Equal(t, observation.StatusApproved, got.Status)
	assert.Equal(t, "supervisor-1", *got.ReviewedBy)
	assert.NotNil(t, got.ReviewedAt)

	assert.Equal(t, validation.StatusPassed, w.result(t, a.ID, w.plaft).Status)
	attempts := w.attempts(t, vr.ID)
	require.Len(t, attempts, 2)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
	assert.Equal(t, validation.StatusPassed, attempts[1].Status)
	assert.Equal(t, "Observation resolved as 'approved' by supervisor.", attempts[1].Comment)
	assert.Equal(t, "supervisor-1", attempts[1].TriggeredBy)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusApproved, r.Status)
	assert.Equal(t, domain.SystemActor, *r.ReviewedBy)
	assert.Equal(t, affiliation.StatusApproved, aff.Status)

	hist := w.history(t, req.ID)
	require.Len(t, hist, 2)
	assert.Equal(t, request.EventObservationResolved, hist[0].EventType)
	assert.Equal(t, "pending", *hist[0].PreviousStatus)
	assert.Equal(t, "approved", *hist[0].NewStatus)
	assert.Equal(t, request.EventStatusChange, hist[1].EventType)
	assert.Equal(t, "All observations resolved. Status updated automatically.", hist[1].Details)
	assert.Equal(t, "observed", *hist[1].PreviousStatus)
	assert.Equal(t, domain.SystemActor, hist[1].ChangedBy)
}

func TestResolveObservation_ManualReviewProductReturnsToPending(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, false, request.StatusObserved)
	o := w.seed.Observation(req, w.plaft, observation.StatusPending)
	w.seed.Result(a, w.plaft, validation.StatusObserved)

	_, err := w.usecase().ResolveObservation(context.Background(), ResolveObservationInput{
		ObservationID: o.ID, Resolution: observation.ResolveIgnored, Actor: "supervisor-1",
	})
	require.NoError(t, err)

	assert.Equal(t, validation.StatusObserved, w.result(t, a.ID, w.plaft).Status)
	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusPending, r.Status)
	assert.Equal(t, affiliation.StatusPending, aff.Status)
	assert.Len(t, w.history(t, req.ID), 2)
}

func TestResolveObservation_OthersStillPending(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, true, request.StatusObserved)
	o1 := w.seed.Observation(req, w.web, observation.StatusPending)
	w.seed.Observation(req, w.other, observation.StatusPending)

	_, err := w.usecase().ResolveObservation(context.Background(), ResolveObservationInput{
		ObservationID: o1.ID, Resolution: observation.ResolveApproved, Actor: "supervisor-1",
	})
	require.NoError(t, err)

	r, _ := w.reload(t, req)
	assert.Equal(t, request.StatusObserved, r.Status)
	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, "Observation ID "+itoa(o1.ID)+" status changed to approved", hist[0].Details)
}

func TestResolveObservation_SystemWithoutResultStillResolves(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusObserved)
	o := w.seed.Observation(req, w.plaft, observation.StatusPending)

	_, err := w.usecase().ResolveObservation(context.Background(), ResolveObservationInput{
		ObservationID: o.ID, Resolution: observation.ResolveApproved, Actor: "supervisor-1",
	})
	require.NoError(t, err)
	assert.Zero(t, w.count(t, &validation.History{}))
}

func TestResolveObservation_Guards(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusObserved)
	closed := w.seed.Observation(req, w.web, observation.StatusIgnored)
	_, done := w.request(t, false, request.StatusApproved)
	onDone := w.seed.Observation(done, w.web, observation.StatusPending)
	uc := w.usecase()
	ctx := context.Background()

	_, err := uc.ResolveObservation(ctx, ResolveObservationInput{ObservationID: closed.ID, Resolution: observation.ResolveApproved, Actor: "s"})
	assert.ErrorIs(t, err, domain.ErrObservationClosed)
	_, err = uc.ResolveObservation(ctx, ResolveObservationInput{ObservationID: onDone.ID, Resolution: observation.ResolveApproved, Actor: "s"})
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	_, err = uc.ResolveObservation(ctx, ResolveObservationInput{ObservationID: 999, Resolution: observation.ResolveApproved, Actor: "s"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.RejectObservation(ctx, RejectObservationInput{ObservationID: closed.ID, Actor: "s"})
	assert.ErrorIs(t, err, domain.ErrObservationClosed)

	assert.Empty(t, w.history(t, req.ID))
	assert.Empty(t, w.history(t, done.ID))
}

// trackedObservations records, for every observation read, whether the request
// row was locked at the time.
type trackedObservations struct {
	observation.Repository
	locked bool
	reads  *[]bool
}

func (o trackedObservations) GetByID(ctx context.Context, id uint64) (*observation.Observation, error) {
	*o.reads = append(*o.reads, o.locked)
	return o.Repository.GetByID(ctx, id)
}

type lockOrderUoW struct {
	inner      uow.UnitOfWork
	reads      []bool
	beforeLock func()
}

func (u *lockOrderUoW) WithinTx(ctx context.Context, fn func(uow.Repos) error) error {
	return u.inner.WithinTx(ctx, func(r uow.Repos) error {
		r.Observations = trackedObservations{Repository: r.Observations, reads: &u.reads}
		return fn(r)
	})
}

func (u *lockOrderUoW) WithinRequestTx(ctx context.Context, id uint64, fn func(uow.Repos, *request.AffiliationRequest) error) error {
	if u.beforeLock != nil {
		u.beforeLock()
	}
	return u.inner.WithinRequestTx(ctx, id, func(r uow.Repos, req *request.AffiliationRequest) error {
		r.Observations = trackedObservations{Repository: r.Observations, locked: true, reads: &u.reads}
		return fn(r, req)
	})
}

func TestResolveObservation_ReadsObservationUnderRequestLock(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, true, request.StatusObserved)
	o := w.seed.Observation(req, w.web, observation.StatusPending)
	tx := &lockOrderUoW{inner: sqlstore.NewGormUoW(w.db)}

	_, err := NewUsecase(tx, w.prov).ResolveObservation(context.Background(), ResolveObservationInput{
		ObservationID: o.ID, Resolution: observation.ResolveApproved, Actor: "supervisor-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tx.reads)
	assert.True(t, tx.reads[len(tx.reads)-1], "the observation acted on is read after the request lock")
}

func TestResolveObservation_ClosedBeforeLockIsRefused(t *testing.T) {
	cases := []struct {
		name string
		call func(*Usecase, uint64) error
	}{
		{"resolve", func(uc *Usecase, id uint64) error {
			_, err := uc.ResolveObservation(context.Background(), ResolveObservationInput{
				ObservationID: id, Resolution: observation.ResolveApproved, Actor: "supervisor-2",
			})
			return err
		}},
		{"reject", func(uc *Usecase, id uint64) error {
			_, err := uc.RejectObservation(context.Background(), RejectObservationInput{ObservationID: id, Actor: "supervisor-2"})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t)
			_, req := w.request(t, true, request.StatusObserved)
			o := w.seed.Observation(req, w.web, observation.StatusPending)
			tx := &lockOrderUoW{inner: sqlstore.NewGormUoW(w.db)}
			// another reviewer closes it between the lookup and the lock
			tx.beforeLock = func() {
				require.NoError(t, w.db.Model(&observation.Observation{}).Where("id = ?", o.ID).
					Update("status", observation.StatusApproved).Error)
			}

			err := tc.call(NewUsecase(tx, w.prov), o.ID)
			assert.ErrorIs(t, err, domain.ErrObservationClosed)
			assert.Empty(t, w.history(t, req.ID))
			r, _ := w.reload(t, req)
			assert.Equal(t, request.StatusObserved, r.Status, "no second cascade")
		})
	}
}

func TestRejectObservation_FailsSystemResultWithoutCascade(t *testing.T) {
	w := newWorld(t)
	a, req := w.request(t, true, request.StatusObserved)
	o := w.seed.Observation(req, w.plaft, observation.StatusPending)
	vr := w.seed.Result(a, w.plaft, validation.StatusObserved)

	dto, err := w.usecase().RejectObservation(context.Background(), RejectObservationInput{ObservationID: o.ID, Actor: "supervisor-1"})
	require.NoError(t, err)
	assert.Equal(t, observation.StatusRejected, dto.Status)

	assert.Equal(t, validation.StatusFailed, w.result(t, a.ID, w.plaft).Status)
	assert.Len(t, w.attempts(t, vr.ID), 2)
	r, _ := w.reload(t, req)
	assert.Equal(t, request.StatusObserved, r.Status)
	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, "rejected", *hist[0].NewStatus)
}

// ---- retry ----

func retryWorld(t *testing.T, auto bool) (*world, *affiliation.Affiliation, *request.AffiliationRequest, *observation.Observation, *validation.Result) {
	w := newWorld(t)
	a, req := w.request(t, auto, request.StatusObserved)
	o := w.seed.Observation(req, w.plaft, observation.StatusPending)
	vr := w.seed.Result(a, w.plaft, validation.StatusObserved)
	return w, a, req, o, vr
}

func TestRetryObservation_SuccessApprovesAndCascades(t *testing.T) {
	w, a, req, o, vr := retryWorld(t, true)
	w.prov.outcome = provider.Outcome{ProviderCode: "SIM", Status: provider.StatusSuccess, ResponseJSON: `{"risk_level":"low"}`}

	dto, err := w.usecase().RetryObservation(context.Background(), RetryObservationInput{ObservationID: o.ID, Actor: "supervisor-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.AttemptNumber)
	assert.Equal(t, observation.StatusApproved, dto.Observation.Status)
	assert.Equal(t, request.StatusApproved, dto.Observation.RequestStatus)

	require.Len(t, w.prov.calls, 1)
	in := w.prov.calls[0]
	assert.Equal(t, provider.CheckInput{Code: "PLAFT_RISK", DocumentNumber: a.RUC, DocumentType: "RUC", ProductID: a.ProductID, ChannelID: a.ChannelID}, in)

	attempts := w.attempts(t, vr.ID)
	require.Len(t, attempts, 2)
	assert.Equal(t, validation.StatusPassed, attempts[1].Status)
	assert.Equal(t, "Retry attempt via observation "+itoa(o.ID), attempts[1].Comment)
	require.NotNil(t, attempts[1].ProviderResponseID)
	assert.Equal(t, dto.ProviderResponseID, *attempts[1].ProviderResponseID)
	assert.Equal(t, validation.StatusPassed, w.result(t, a.ID, w.plaft).Status)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusApproved, r.Status)
	assert.Equal(t, affiliation.StatusApproved, aff.Status)
	hist := w.history(t, req.ID)
	require.Len(t, hist, 2)
	assert.Equal(t, request.EventAutomaticObservationRetry, hist[0].EventType)
	assert.Equal(t, request.EventStatusChange, hist[1].EventType)
}

func TestRetryObservation_FailureIsAllOrNothing(t *testing.T) {
	w, a, req, o, vr := retryWorld(t, true)
	w.prov.outcome = provider.Outcome{ProviderCode: "SIM", Status: provider.StatusError, ErrorMessage: "Document found in internal blacklist"}

	_, err := w.usecase().RetryObservation(context.Background(), RetryObservationInput{ObservationID: o.ID, Actor: "supervisor-1"})
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Contains(t, err.Error(), "Document found in internal blacklist")

	var got observation.Observation
	require.NoError(t, w.db.First(&got, o.ID).Error)
	assert.Equal(t, observation.StatusPending, got.Status)
	assert.Equal(t, validation.StatusObserved, w.result(t, a.ID, w.plaft).Status)
	assert.Len(t, w.attempts(t, vr.ID), 1)
	assert.Zero(t, w.count(t, &validation.ProviderResponse{}))
	assert.Empty(t, w.history(t, req.ID))
}

func TestRetryObservation_AuditedFailuresKeepGaplessAttempts(t *testing.T) {
	w, a, req, o, vr := retryWorld(t, false)
	uc := w.usecase(WithRetryAuditFailures(true))
	ctx := context.Background()

	w.prov.outcome = provider.Outcome{ProviderCode: "SIM", Status: provider.StatusError, ErrorMessage: "still risky"}
	for i := 0; i < 2; i++ {
		_, err := uc.RetryObservation(ctx, RetryObservationInput{ObservationID: o.ID, Actor: "supervisor-1"})
		require.ErrorIs(t, err, domain.ErrProviderFailure)
	}
	assert.EqualValues(t, 2, w.count(t, &validation.ProviderResponse{}))
	assert.Equal(t, validation.StatusFailed, w.result(t, a.ID, w.plaft).Status)

	w.prov.outcome = provider.Outcome{ProviderCode: "SIM", Status: provider.StatusSuccess, ResponseJSON: `{"risk_level":"low"}`}
	dto, err := uc.RetryObservation(ctx, RetryObservationInput{ObservationID: o.ID, Actor: "supervisor-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, dto.AttemptNumber)

	attempts := w.attempts(t, vr.ID)
	require.Len(t, attempts, 4)
	for i, h := range attempts {
		assert.Equal(t, i+1, h.AttemptNumber)
	}
	assert.Equal(t, validation.StatusFailed, attempts[1].Status)
	assert.Equal(t, validation.StatusPassed, attempts[3].Status)

	// manual-review product: cleared request goes back to pending
	r, _ := w.reload(t, req)
	assert.Equal(t, request.StatusPending, r.Status)
}

func TestRetryObservation_TimeoutIsProviderFailure(t *testing.T) {
	w, _, _, o, _ := retryWorld(t, true)
	w.prov.block = true

	_, err := w.usecase(WithProviderTimeout(20*time.Millisecond)).RetryObservation(context.Background(),
		RetryObservationInput{ObservationID: o.ID, Actor: "supervisor-1"})
	require.ErrorIs(t, err, domain.ErrProviderFailure)
}

func TestRetryObservation_Guards(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusObserved)
	manual := w.seed.Observation(req, w.web, observation.StatusPending)
	noResult := w.seed.Observation(req, w.blacklist, observation.StatusPending)
	a2, req2 := w.request(t, false, request.StatusObserved)
	closed := w.seed.Observation(req2, w.plaft, observation.StatusApproved)
	w.seed.Result(a2, w.plaft, validation.StatusPassed)
	uc := w.usecase()
	ctx := context.Background()

	tests := []struct {
		name string
		id   uint64
		want error
	}{
		{"manual observation", manual.ID, domain.ErrNotRetriable},
		{"missing validation result", noResult.ID, domain.ErrDataIntegrity},
		{"not pending", closed.ID, domain.ErrObservationClosed},
		{"missing observation", 999, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.RetryObservation(ctx, RetryObservationInput{ObservationID: tt.id, Actor: "s"})
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, w.prov.calls, "guards must run before the provider is called")
}

func TestRetryObservation_BusyLock(t *testing.T) {
	w, _, _, o, _ := retryWorld(t, true)

	_, err := w.usecase(WithLocker(busyLocker{})).RetryObservation(context.Background(),
		RetryObservationInput{ObservationID: o.ID, Actor: "s"})
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Empty(t, w.prov.calls)
}

// ---- manual override ----

func TestResolveRequest_IgnoresPendingObservationsAndIsFinal(t *testing.T) {
	w := newWorld(t)
	_, req := w.request(t, false, request.StatusObserved)
	w.seed.Observation(req, w.web, observation.StatusPending)
	uc := w.usecase()
	ctx := context.Background()

	dto, err := uc.ResolveRequest(ctx, ResolveRequestInput{RequestID: req.ID, Status: request.StatusApproved, Actor: "supervisor-1"})
	require.NoError(t, err)
	assert.Equal(t, request.StatusApproved, dto.Status)

	_, err = uc.ResolveRequest(ctx, ResolveRequestInput{RequestID: req.ID, Status: request.StatusRejected, Actor: "supervisor-2"})
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	r, aff := w.reload(t, req)
	assert.Equal(t, request.StatusApproved, r.Status)
	assert.Equal(t, "supervisor-1", *r.ReviewedBy)
	assert.Equal(t, affiliation.StatusApproved, aff.Status)
	hist := w.history(t, req.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, "Request manually reviewed and set to approved", hist[0].Details)
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{domain.ErrNotFound, domain.ErrAlreadyFinalized, domain.ErrDataIntegrity, domain.ErrProviderFailure,
		domain.ErrInvalidInput, domain.ErrObservationClosed, domain.ErrNotRetriable, domain.ErrBusy}
	for i := range all {
		for j := range all {
			if i != j && errors.Is(all[i], all[j]) {
				t.Fatalf("%v should not match %v", all[i], all[j])
			}
		}
	}
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
