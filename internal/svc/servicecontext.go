package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "daytrader-api/internal/cache"
	"daytrader-api/internal/config"
	"daytrader-api/internal/model"
	"daytrader-api/internal/persistence/engine"
	marketpkg "daytrader-api/pkg/market"
	_ "daytrader-api/pkg/market/b3"
	_ "daytrader-api/pkg/market/sim"
	_ "daytrader-api/pkg/market/stream"
	"daytrader-api/pkg/notify"
	"daytrader-api/pkg/risk"
	"daytrader-api/pkg/sessionclock"
	strategypkg "daytrader-api/pkg/strategy"
)

type ServiceContext struct {
	Config config.Config

	Clock *sessionclock.Clock

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	StrategyConfig *strategypkg.Config
	StrategyEngine *strategypkg.Engine

	RiskGate *risk.Gate
	Notifier *notify.Multi

	DBConn               sqlx.SqlConn
	ProposalsModel       model.ProposalsModel
	RiskEvaluationsModel model.RiskEvaluationsModel
	ExecutionsModel      model.ExecutionsModel
	OpenPositionsModel   model.OpenPositionsModel
	CapturesModel        model.MarketDataCapturesModel
	PerformanceModel     model.PerformanceSnapshotsModel

	Persistence *engine.Service
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	clock, err := sessionclock.New(c.Clock)
	if err != nil {
		log.Fatalf("failed to build session clock: %v", err)
	}
	svc.Clock = clock

	// Sections are hydrated at config load; fall back to the project etc/
	// files so ad hoc tools still come up with just a main config.
	marketCfg := c.Market.Value
	if marketCfg == nil {
		marketCfg = config.MustLoadMarket()
	}
	providers, err := marketCfg.BuildProviders()
	if err != nil {
		log.Fatalf("failed to build market providers: %v", err)
	}
	svc.MarketConfig = marketCfg
	svc.MarketProviders = providers
	if marketCfg.Default != "" {
		svc.DefaultMarket = providers[marketCfg.Default]
	}
	if svc.DefaultMarket == nil {
		log.Fatalf("market config declares no default provider")
	}

	strategyCfg := c.Strategy.Value
	if strategyCfg == nil {
		strategyCfg = config.MustLoadStrategy()
	}
	svc.StrategyConfig = strategyCfg
	svc.StrategyEngine = strategypkg.FromConfig(strategyCfg)

	svc.RiskGate = risk.NewGate(c.Risk)

	notifier, err := c.Notify.Build()
	if err != nil {
		log.Fatalf("failed to build notification channels: %v", err)
	}
	svc.Notifier = notifier

	if c.Postgres.DSN == "" {
		log.Fatalf("postgres dsn is required")
	}
	if c.Redis.Host == "" {
		log.Fatalf("redis is required for the model cache")
	}

	conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	cacheConf := cache.CacheConf{{RedisConf: c.Redis, Weight: 100}}

	svc.DBConn = conn
	svc.ProposalsModel = model.NewProposalsModel(conn, cacheConf)
	svc.RiskEvaluationsModel = model.NewRiskEvaluationsModel(conn, cacheConf)
	svc.ExecutionsModel = model.NewExecutionsModel(conn, cacheConf)
	svc.OpenPositionsModel = model.NewOpenPositionsModel(conn, cacheConf)
	svc.CapturesModel = model.NewMarketDataCapturesModel(conn, cacheConf)
	svc.PerformanceModel = model.NewPerformanceSnapshotsModel(conn, cacheConf)

	sharedCache := cache.New(cacheConf, syncx.NewSingleFlight(), cache.NewStat("daytrader"), model.ErrNotFound)

	svc.Persistence = engine.NewService(engine.Config{
		SQLConn:        conn,
		ProposalsModel: svc.ProposalsModel,
		RiskModel:      svc.RiskEvaluationsModel,
		ExecModel:      svc.ExecutionsModel,
		PositionsModel: svc.OpenPositionsModel,
		CapturesModel:  svc.CapturesModel,
		PerfModel:      svc.PerformanceModel,
		Cache:          sharedCache,
		TTL:            cachekeys.NewTTLSet(c.TTL),
		Location:       clock.Location(),
		BaseNAV:        c.Session.InitialNAV,
	})
	return svc
}
