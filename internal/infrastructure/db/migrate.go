package db

import (
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/affiliation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/product"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/request"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/validation"

	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&product.Product{},
		&product.RequestConfig{},
		&affiliation.Affiliation{},
		&request.AffiliationRequest{},
		&request.History{},
		&observation.Type{},
		&observation.Cause{},
		&observation.ProductType{},
		&observation.Observation{},
		&observation.SelectedCause{},
		&validation.ProviderResponse{},
		&validation.Result{},
		&validation.History{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
