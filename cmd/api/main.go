package main

import (
	"context"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	httpadp "github.com/OvertAmbrosio/affiliation-request-demo/internal/adapter/http"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/adapter/lock"
	idemp "github.com/OvertAmbrosio/affiliation-request-demo/internal/adapter/middleware"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/adapter/provider"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/adapter/repository/sqlstore"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/config"
	domain "github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/infrastructure/cache"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/infrastructure/db"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/catalog"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/onboarding"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/usecase/query"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(),
		db.WithLogLevel(db.ParseLogLevel(cfg.DBLogLevel)),
		db.WithTracing(cfg.DBTracing),
		db.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	tx := sqlstore.NewGormUoW(gdb)

	var mutating []echo.MiddlewareFunc
	var catalogCache catalog.Cache
	lcOpts := []lifecycle.Option{
		lifecycle.WithRiskPolicy(domain.NewRiskPolicy(cfg.RiskCheckCodes, cfg.RiskLevels)),
		lifecycle.WithProviderTimeout(cfg.ProviderTimeout),
		lifecycle.WithRetryAuditFailures(cfg.RetryAuditFailures),
		lifecycle.WithLogger(log),
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		mutating = append(mutating, idemp.IdempotencyMiddleware(rdb, cfg.IdempotencyTTL(), log))
		lcOpts = append(lcOpts, lifecycle.WithLocker(lock.NewRedisLocker(rdb, cfg.LockTTL(), log)))
		catalogCache = cache.NewJSONCache(rdb, "catalog:", cfg.CacheTTL())
	} else {
		log.Warn("REDIS_ADDR not set; idempotency, retry locks and catalog cache are off")
	}

	catalogUC := catalog.NewUsecase(tx, catalog.WithCache(catalogCache), catalog.WithLogger(log))
	cat, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}
	if _, err := catalogUC.Sync(context.Background(), cat); err != nil {
		return err
	}

	sim := provider.NewSimulator()
	lifecycleUC := lifecycle.NewUsecase(tx, sim, lcOpts...)
	onboardingUC := onboarding.NewUsecase(tx, sim, lifecycleUC,
		onboarding.WithProviderTimeout(cfg.ProviderTimeout),
		onboarding.WithLogger(log),
	)
	queryUC := query.NewUsecase(tx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	httpadp.Register(e, httpadp.Handlers{
		Health:       httpadp.NewHandler(sqlDB),
		Affiliations: httpadp.NewAffiliationHandler(onboardingUC, queryUC),
		Requests:     httpadp.NewRequestHandler(lifecycleUC, queryUC),
		Observations: httpadp.NewObservationHandler(lifecycleUC, queryUC),
		Catalog:      httpadp.NewCatalogHandler(catalogUC),
	}, mutating...)

	addr := ":" + cfg.AppPort
	log.WithField("addr", addr).Info("listening")
	return e.Start(addr)
}
