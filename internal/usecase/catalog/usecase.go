// Package catalog administers products, their review policy and the
// observation types reviewers can raise.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/config"
	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/observation"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/product"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/uow"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
)

const moduleName = "usecase.catalog"

// Cache is a JSON read-through cache. *cache.JSONCache satisfies it, including
// its nil value.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Flush(ctx context.Context) error
}

type Usecase struct {
	uow   uow.UnitOfWork
	cache Cache
	log   logrus.FieldLogger
}

type Option func(*Usecase)

func WithCache(c Cache) Option                { return func(u *Usecase) { u.cache = c } }
func WithLogger(l logrus.FieldLogger) Option { return func(u *Usecase) { u.log = l } }

func NewUsecase(tx uow.UnitOfWork, opts ...Option) *Usecase {
	u := &Usecase{uow: tx, log: logging.Discard()}
	for _, o := range opts {
		o(u)
	}
	return u
}

func manualKey(productID uint64) string { return fmt.Sprintf("manual:%d", productID) }

// invalidate drops cached catalog reads. Flush failures are logged, not
// returned.
func (u *Usecase) invalidate(ctx context.Context) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Flush(ctx); err != nil {
		logging.LogError(u.log, moduleName, "invalidate", "flush catalog cache", nil, err)
	}
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, l := range in {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func (u *Usecase) AddObservationType(ctx context.Context, in AddTypeInput) (*observation.Type, error) {
	code := strings.TrimSpace(in.Code)
	title := strings.TrimSpace(in.Title)
	if code == "" || title == "" || !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: code, title and a manual|system kind are required", domain.ErrInvalidInput)
	}

	var out *observation.Type
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		_, err := r.Catalog.GetTypeByCode(ctx, code)
		switch {
		case err == nil:
			return fmt.Errorf("%w: observation type %s already exists", domain.ErrInvalidInput, code)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		for _, pid := range in.ProductIDs {
			if _, err := r.Products.GetByID(ctx, pid); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d", domain.ErrNotFound, pid)
				}
				return err
			}
		}

		t := &observation.Type{Code: code, Title: title, Kind: in.Kind, IsActive: true}
		if l := strings.TrimSpace(in.Label); l != "" {
			t.Label = &l
		}
		if err := r.Catalog.CreateType(ctx, t); err != nil {
			return err
		}
		for _, label := range cleanLabels(in.CauseLabels) {
			c := &observation.Cause{ObservationTypeID: t.ID, Label: label, IsActive: true}
			if err := r.Catalog.CreateCause(ctx, c); err != nil {
				return err
			}
			t.Causes = append(t.Causes, *c)
		}
		for _, pid := range in.ProductIDs {
			if _, err := r.Catalog.LinkProduct(ctx, pid, t.ID); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.invalidate(ctx)
	return out, nil
}

func (u *Usecase) ListTypes(ctx context.Context) ([]observation.Type, error) {
	var out []observation.Type
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Catalog.ListTypes(ctx)
		return err
	})
	return out, err
}

// ManualTypesForProduct lists the active manual types a reviewer may raise on
// requests of the product, with their active causes.
func (u *Usecase) ManualTypesForProduct(ctx context.Context, productID uint64) ([]observation.Type, error) {
	key := manualKey(productID)
	if u.cache != nil {
		var cached []observation.Type
		hit, err := u.cache.Get(ctx, key, &cached)
		if err != nil {
			u.log.WithFields(logrus.Fields{"module": moduleName, "key": key}).WithError(err).Warn("catalog cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	var out []observation.Type
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if _, err := r.Products.GetByID(ctx, productID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", domain.ErrNotFound, productID)
			}
			return err
		}
		kind := observation.KindManual
		var err error
		out, err = r.Catalog.ListTypesForProduct(ctx, productID, &kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []observation.Type{}
	}
	if u.cache != nil {
		if err := u.cache.Set(ctx, key, out); err != nil {
			u.log.WithFields(logrus.Fields{"module": moduleName, "key": key}).WithError(err).Warn("catalog cache write failed")
		}
	}
	return out, nil
}

func (u *Usecase) ResolveCode(ctx context.Context, code string) (*observation.Type, error) {
	var out *observation.Type
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		t, err := r.Catalog.GetTypeByCode(ctx, strings.TrimSpace(code))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: observation type %s", domain.ErrNotFound, code)
		}
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Usecase) ListRequestConfigs(ctx context.Context) ([]product.RequestConfig, error) {
	var out []product.RequestConfig
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Products.ListConfigs(ctx)
		return err
	})
	return out, err
}

// SetAutoApprove changes a product's review policy. Requests already open keep
// their status until their next observation resolves.
func (u *Usecase) SetAutoApprove(ctx context.Context, configID uint64, autoApprove bool) (*product.RequestConfig, error) {
	var out *product.RequestConfig
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		cfg, err := r.Products.GetConfig(ctx, configID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: request config %d", domain.ErrNotFound, configID)
			}
			return err
		}
		if err := r.Products.SetAutoApprove(ctx, cfg.ID, autoApprove); err != nil {
			return err
		}
		cfg.AutoApprove = autoApprove
		out = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sync creates whatever the catalog file declares and the database lacks.
// Existing rows, including their auto_approve and is_active flags, are left
// untouched. Running it twice is a no-op.
func (u *Usecase) Sync(ctx context.Context, cat *config.Catalog) (*SyncReport, error) {
	if cat == nil {
		return &SyncReport{}, nil
	}
	rep := &SyncReport{}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		products := map[string]uint64{}
		for _, cp := range cat.Products {
			id, err := syncProduct(ctx, r, cp, rep)
			if err != nil {
				return err
			}
			products[cp.Name] = id
		}
		for _, ct := range cat.ObservationTypes {
			if err := syncType(ctx, r, ct, products, rep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.LogError(u.log, moduleName, "Sync", "sync catalog", rep, err)
		return nil, err
	}
	u.invalidate(ctx)
	u.log.WithFields(logrus.Fields{
		"module":   moduleName,
		"products": rep.Products,
		"configs":  rep.Configs,
		"types":    rep.Types,
		"causes":   rep.Causes,
		"links":    rep.Links,
	}).Info("catalog synced")
	return rep, nil
}

func syncProduct(ctx context.Context, r uow.Repos, cp config.CatalogProduct, rep *SyncReport) (uint64, error) {
	p, err := r.Products.GetByName(ctx, cp.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = &product.Product{Name: cp.Name, Description: cp.Description}
		if err = r.Products.Create(ctx, p); err == nil {
			rep.Products++
		}
	}
	if err != nil {
		return 0, err
	}

	_, err = r.Products.GetConfigByProduct(ctx, p.ID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return p.ID, err
	}
	name := cp.ConfigName
	if name == "" {
		name = cp.Name + " review"
	}
	cfg := &product.RequestConfig{ProductID: p.ID, Name: name}
	if err := r.Products.CreateConfig(ctx, cfg); err != nil {
		return 0, err
	}
	rep.Configs++
	if cp.AutoApprove {
		// the column default swallows a true on insert
		if err := r.Products.SetAutoApprove(ctx, cfg.ID, true); err != nil {
			return 0, err
		}
	}
	return p.ID, nil
}

func syncType(ctx context.Context, r uow.Repos, ct config.CatalogObservationType, products map[string]uint64, rep *SyncReport) error {
	t, err := r.Catalog.GetTypeByCode(ctx, ct.Code)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		t = &observation.Type{Code: ct.Code, Title: ct.Title, Kind: observation.Kind(ct.Kind), IsActive: true}
		if ct.Label != "" {
			l := ct.Label
			t.Label = &l
		}
		if err := r.Catalog.CreateType(ctx, t); err != nil {
			return err
		}
		rep.Types++
		if ct.Inactive {
			if err := r.Catalog.SetTypeActive(ctx, t.ID, false); err != nil {
				return err
			}
		}
	case err != nil:
		return err
	default:
		if t, err = r.Catalog.GetType(ctx, t.ID); err != nil {
			return err
		}
	}

	have := map[string]bool{}
	for _, c := range t.Causes {
		have[c.Label] = true
	}
	for _, label := range cleanLabels(ct.Causes) {
		if have[label] {
			continue
		}
		if err := r.Catalog.CreateCause(ctx, &observation.Cause{ObservationTypeID: t.ID, Label: label, IsActive: true}); err != nil {
			return err
		}
		rep.Causes++
	}

	for _, name := range ct.Products {
		if name == "*" {
			continue
		}
		if _, ok := products[name]; ok {
			continue
		}
		p, err := r.Products.GetByName(ctx, name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: type %s links unknown product %s", domain.ErrInvalidInput, ct.Code, name)
		}
		if err != nil {
			return err
		}
		products[name] = p.ID
	}
	for name, pid := range products {
		if !ct.AppliesTo(name) {
			continue
		}
		created, err := r.Catalog.LinkProduct(ctx, pid, t.ID)
		if err != nil {
			return err
		}
		if created {
			rep.Links++
		}
	}
	return nil
}
