// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/events"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/memstore"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/transactiondelivery"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/internal/transactionservice"
	"github.com/go-petr/pet-ledger/internal/walletdelivery"
	"github.com/go-petr/pet-ledger/internal/walletrepo"
	"github.com/go-petr/pet-ledger/internal/walletservice"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config

	cache     *redis.Client
	publisher publisher
}

type publisher interface {
	transactionservice.Publisher
	Close() error
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// Close releases the event publisher and the idempotency cache.
// The database connection is owned by the caller.
func (s *Server) Close() error {
	var errs []error

	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}

	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}

	return errors.Join(errs...)
}

type storage struct {
	wallets      walletservice.Repo
	transactions transactionservice.Repo
	walletLedger walletservice.Ledger
	txLedger     transactionservice.Ledger
}

func newStorage(conn *sql.DB, config configpkg.Config) (storage, error) {
	switch config.Storage {
	case configpkg.StoragePostgres, "":
		if conn == nil {
			return storage{}, errors.New("postgres storage needs a database connection")
		}

		ledger := ledgerrepo.NewRepoPGS(conn, config.LockTimeout)

		return storage{
			wallets:      walletrepo.NewRepoPGS(conn),
			transactions: transactionrepo.NewRepoPGS(conn),
			walletLedger: ledger,
			txLedger:     ledger,
		}, nil
	case configpkg.StorageMemory:
		store := memstore.New(memstore.WithLockTimeout(config.LockTimeout))

		return storage{
			wallets:      store.Wallets(),
			transactions: store.Transactions(),
			walletLedger: store,
			txLedger:     store,
		}, nil
	default:
		return storage{}, fmt.Errorf("unknown storage %q", config.Storage)
	}
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	store, err := newStorage(conn, config)
	if err != nil {
		return nil, err
	}

	server := &Server{
		DB:        conn,
		Config:    config,
		publisher: events.NoopPublisher{},
	}

	if brokers := config.Brokers(); len(brokers) > 0 {
		server.publisher = events.NewKafkaPublisher(brokers, config.KafkaTopic)
	}

	walletService := walletservice.New(store.wallets, store.walletLedger)
	transactionService := transactionservice.New(store.transactions, store.txLedger, server.publisher,
		transactionservice.RetryPolicy{
			MaxAttempts: config.AppendMaxAttempts,
			Backoff:     config.AppendRetryBackoff,
		})

	walletHandler := walletdelivery.NewHandler(walletService)
	transactionHandler := transactiondelivery.NewHandler(transactionService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	if config.RateLimit != "" {
		l, err := middleware.NewLimiter(config.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("cannot create rate limiter: %w", err)
		}

		engine.Use(middleware.RateLimit(l))
	}

	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("cannot parse redis url: %w", err)
		}

		server.cache = redis.NewClient(opt)
		engine.Use(middleware.Idempotency(server.cache, config.IdempotencyTTL))
	}

	engine.GET("/healthz", server.health)

	engine.POST("/wallets", walletHandler.Create)
	engine.GET("/wallets", walletHandler.List)
	engine.GET("/wallets/:id", walletHandler.Get)
	engine.PATCH("/wallets/:id", walletHandler.Rename)
	engine.GET("/wallets/:id/reconcile", walletHandler.Reconcile)

	engine.POST("/transactions", transactionHandler.Append)
	engine.GET("/transactions", transactionHandler.List)
	engine.GET("/transactions/:id", transactionHandler.Get)
	engine.PUT("/transactions/:id", transactionHandler.Update)
	engine.PATCH("/transactions/:id", transactionHandler.Update)
	engine.DELETE("/transactions/:id", transactionHandler.Delete)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("decimal", moneypkg.ValidDecimal)
		if err != nil {
			return nil, errors.New("cannot register decimal validator")
		}
	}

	server.Engine = engine

	return server, nil
}

func (s *Server) health(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	if s.DB != nil && s.Config.Storage != configpkg.StorageMemory {
		if err := s.DB.PingContext(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("database ping failed")
			gctx.JSON(http.StatusServiceUnavailable, web.Error(errorspkg.ErrInternal))

			return
		}
	}

	gctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
