package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cacheutil "sigex/internal/cache"
	"sigex/internal/config"
	"sigex/internal/model"
	"sigex/internal/persistence/engine"
	"sigex/internal/repo"
	"sigex/pkg/dispatch"
	exchangepkg "sigex/pkg/exchange"
	_ "sigex/pkg/exchange/bingx"
	_ "sigex/pkg/exchange/sim"
	executorpkg "sigex/pkg/executor"
	"sigex/pkg/journal"
	"sigex/pkg/signal"
)

type ServiceContext struct {
	Config config.Config

	ExchangeConfig    *exchangepkg.Config
	ExchangeProviders map[string]exchangepkg.Client
	DefaultExchange   exchangepkg.Client

	ExecutionConfig *executorpkg.Config
	Executor        *executorpkg.Executor
	Dispatcher      *dispatch.Dispatcher
	Dedupe          *signal.Cache
	Journal         *journal.Journal

	// Optional storage; handlers degrade gracefully when unset.
	DBConn      sqlx.SqlConn
	Cache       cache.Cache
	TTL         cacheutil.TTLSet
	Repo        *repo.Set
	Persistence *engine.Service
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		TTL:    cacheutil.NewTTLSet(c.TTL),
	}

	// Exchange providers, built from the hydrated section.
	if exchangeCfg := c.Exchange.Value; exchangeCfg != nil {
		// Test environment defaults: route every provider at its testnet.
		if c.IsTestEnv() {
			for _, provider := range exchangeCfg.Providers {
				provider.Testnet = true
			}
		}
		providers, err := exchangeCfg.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build exchange providers: %v", err)
		}
		svc.ExchangeConfig = exchangeCfg
		svc.ExchangeProviders = providers
		if exchangeCfg.Default != "" {
			svc.DefaultExchange = providers[exchangeCfg.Default]
		}
	}

	// Execution pipeline settings.
	if execCfg := c.Execution.Value; execCfg != nil {
		// Test environment defaults: never let webhooks reach the venue.
		if c.IsTestEnv() {
			execCfg.Trade.DryRun = true
		}
		svc.ExecutionConfig = execCfg
		svc.Dedupe = signal.NewCache(execCfg.Resilience.DedupeTTL)
	}

	if c.Postgres.DSN != "" {
		svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	}
	if c.Redis.Host != "" {
		rds := redis.MustNewRedis(c.Redis)
		svc.Cache = cache.NewNode(rds, syncx.NewSingleFlight(), cache.NewStat(cacheutil.Namespace), model.ErrNotFound)
	}

	if svc.DBConn != nil {
		repos, err := repo.New(repo.Dependencies{
			DBConn: svc.DBConn,
			Cache:  svc.Cache,
			TTL:    svc.TTL,
		})
		if err != nil {
			log.Fatalf("failed to build repositories: %v", err)
		}
		svc.Repo = repos
		svc.Persistence = engine.NewService(engine.Config{Repos: repos})
	}

	j, err := journal.Open(c.DataPath, log.Default())
	if err != nil {
		log.Fatalf("failed to open execution journal: %v", err)
	}
	svc.Journal = j

	if svc.DefaultExchange != nil && svc.ExecutionConfig != nil {
		exec, err := executorpkg.New(svc.DefaultExchange, svc.ExecutionConfig)
		if err != nil {
			log.Fatalf("failed to build executor: %v", err)
		}
		svc.Executor = exec

		recorders := []dispatch.Recorder{svc.Journal}
		if svc.Persistence != nil {
			recorders = append(recorders, svc.Persistence)
		}
		dispatcher, err := dispatch.New(exec, svc.ExecutionConfig.Dispatcher,
			dispatch.WithRecorder(dispatch.MultiRecorder(recorders...)))
		if err != nil {
			log.Fatalf("failed to build dispatcher: %v", err)
		}
		svc.Dispatcher = dispatcher
	}

	return svc
}
