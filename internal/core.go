package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/gymplan/internal/config"
	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan/catalog"
	"github.com/2beens/gymplan/internal/gymplan/plan"
	"github.com/2beens/gymplan/internal/gymplan/progression"
	"github.com/2beens/gymplan/internal/gymplan/report"
	"github.com/2beens/gymplan/internal/gymplan/workout"
	"github.com/2beens/gymplan/internal/telemetry/metrics"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Core holds the wired gymplan components, all sharing one pgx pool.
type Core struct {
	Catalog   *catalog.Service
	Builder   *plan.Builder
	Importer  *plan.Importer
	Engine    *progression.Engine
	Recorder  *workout.Recorder
	Projector *report.Projector

	config *config.Config
	dbPool *pgxpool.Pool

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

type NewCoreParams struct {
	Config           *config.Config
	PostgresPassword string
}

func NewCore(ctx context.Context, params NewCoreParams) (*Core, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.Config.PostgresUser,
		DBPassword:     params.PostgresPassword,
		MaxConns:       params.Config.PostgresMaxConns,
		TracingEnabled: params.Config.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	return NewCoreWithPool(dbPool, params.Config), nil
}

// NewCoreWithPool wires all components on top of an already open pool.
// The core takes ownership of the pool and closes it on Shutdown.
func NewCoreWithPool(dbPool *pgxpool.Pool, cfg *config.Config) *Core {
	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager(cfg.MetricsNamespace, "core", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	txRunner := db.NewTxRunner(dbPool)
	planRepo := plan.NewRepo()
	workoutRepo := workout.NewRepo()

	catalogService := catalog.NewService(
		catalog.NewRepo(dbPool),
		cfg.CatalogCacheSizeMB,
		cfg.CatalogCacheTTLSecs,
	)
	builder := plan.NewBuilder(txRunner, planRepo)
	engine := progression.NewEngine(txRunner, workoutRepo, planRepo, builder, metricsManager)

	c := &Core{
		Catalog:   catalogService,
		Builder:   builder,
		Importer:  plan.NewImporter(builder, catalogService, metricsManager),
		Engine:    engine,
		Recorder:  workout.NewRecorder(txRunner, planRepo, workoutRepo, engine, metricsManager),
		Projector: report.NewProjector(dbPool),

		config: cfg,
		dbPool: dbPool,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	}

	metricsManager.GaugeLifeSignal.Set(1)
	log.Debugf("gymplan core set up, env: %s", cfg.Environment)

	return c
}

// Migrate applies the gymplan schema.
func (c *Core) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, c.dbPool)
}

func (c *Core) MetricsRegistry() *prometheus.Registry {
	return c.promRegistry
}

// MetricsSnapshot returns the current values of all registered counters and gauges.
func (c *Core) MetricsSnapshot() (map[string]float64, error) {
	return metrics.Snapshot(c.promRegistry)
}

func (c *Core) Shutdown() {
	log.Debug("core shutdown initiated ...")

	c.metricsManager.GaugeLifeSignal.Set(0)

	if c.dbPool != nil {
		log.Debugln("closing db pool ...")
		c.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
