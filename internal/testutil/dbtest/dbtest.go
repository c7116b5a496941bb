// Package dbtest opens migrated in-memory sqlite databases and seeds fixtures
// for use case and repository tests.
package dbtest

import (
	"context"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/product"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/infrastructure/db"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
	"github.com/OvertAmbrosio/affiliation-request-demo/pkg/id"
)

// Open returns a fresh migrated database private to t.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenGorm(db.DriverSQLite, ":memory:",
		db.WithLogLevel(logger.Silent), db.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// Seeder creates rows directly, bypassing the use cases under test.
type Seeder struct {
	t  *testing.T
	db *gorm.DB
}

func NewSeeder(t *testing.T, gdb *gorm.DB) *Seeder { return &Seeder{t: t, db: gdb} }

func (s *Seeder) create(v any) {
	s.t.Helper()
	if err := s.db.WithContext(context.Background()).Create(v).Error; err != nil {
		s.t.Fatalf("seed %T: %v", v, err)
	}
}

// Product creates a product with its request config.
func (s *Seeder) Product(name string, autoApprove bool) (*product.Product, *product.RequestConfig) {
	s.t.Helper()
	p := &product.Product{Name: name}
	s.create(p)
	c := &product.RequestConfig{ProductID: p.ID, Name: name + " review"}
	s.create(c)
	if autoApprove {
		// gorm skips zero values that carry a column default, so flip it explicitly
		if err := s.db.Model(c).Update("auto_approve", true).Error; err != nil {
			s.t.Fatalf("seed auto_approve: %v", err)
		}
		c.AutoApprove = true
	}
	return p, c
}

// Type creates an active observation type with one active cause per label and
// links it to the given products.
func (s *Seeder) Type(code string, kind observation.Kind, causes []string, productIDs ...uint64) *observation.Type {
	s.t.Helper()
	t := &observation.Type{Code: code, Title: code, Kind: kind, IsActive: true}
	s.create(t)
	for _, label := range causes {
		c := &observation.Cause{ObservationTypeID: t.ID, Label: label, IsActive: true}
		s.create(c)
		t.Causes = append(t.Causes, *c)
	}
	for _, pid := range productIDs {
		s.create(&observation.ProductType{ProductID: pid, ObservationTypeID: t.ID})
	}
	return t
}

func (s *Seeder) Affiliation(productID uint64, ruc string) *affiliation.Affiliation {
	s.t.Helper()
	a := &affiliation.Affiliation{
		ID:           id.NewID32(),
		CustomerID:   "cus_test",
		ProductID:    productID,
		ChannelID:    1,
		RUC:          ruc,
		BusinessName: "ACME " + ruc,
		Status:       affiliation.StatusPending,
		CreatedBy:    "seed",
	}
	s.create(a)
	return a
}

func (s *Seeder) Request(a *affiliation.Affiliation, cfg *product.RequestConfig, st request.Status) *request.AffiliationRequest {
	s.t.Helper()
	r := &request.AffiliationRequest{
		AffiliationID:   a.ID,
		RequestConfigID: cfg.ID,
		Status:          st,
		CreatedBy:       "seed",
	}
	s.create(r)
	return r
}

func (s *Seeder) Observation(req *request.AffiliationRequest, t *observation.Type, st observation.Status) *observation.Observation {
	s.t.Helper()
	o := &observation.Observation{
		AffiliationRequestID: req.ID,
		ObservationTypeID:    t.ID,
		Status:               st,
		CreatedBy:            "system",
	}
	s.create(o)
	return o
}

// Result creates a validation result with its first attempt.
func (s *Seeder) Result(a *affiliation.Affiliation, t *observation.Type, st validation.Status) *validation.Result {
	s.t.Helper()
	r := &validation.Result{AffiliationID: a.ID, ObservationTypeID: t.ID, Code: t.Code, Status: st}
	s.create(r)
	s.create(&validation.History{ValidationResultID: r.ID, AttemptNumber: 1, Status: st, TriggeredBy: "seed"})
	return r
}
