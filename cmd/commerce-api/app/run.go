package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/openbounty/commerce-api/configs"
	"github.com/openbounty/commerce-api/internal/adapter/cache"
	"github.com/openbounty/commerce-api/internal/adapter/http"
	"github.com/openbounty/commerce-api/internal/adapter/http/middleware"
	"github.com/openbounty/commerce-api/internal/adapter/kafka"
	"github.com/openbounty/commerce-api/internal/adapter/queue"
	"github.com/openbounty/commerce-api/internal/adapter/repo"
	"github.com/openbounty/commerce-api/internal/eventbus"
	"github.com/openbounty/commerce-api/internal/logging"
	"github.com/openbounty/commerce-api/internal/usecase"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logFile := cfg.App.LogFile
	if logFile == "" {
		logFile = "./logs/app.log"
	}
	logging.Init(cfg.App.Name, logFile)
	log := logging.New("app")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	cancel()

	log.Info("commerce-api: starting up")

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// infra
	cartRepo := repo.NewMySQLCartRepo(db)
	orderRepo := repo.NewMySQLOrderRepo(db)
	pointOrderRepo := repo.NewMySQLPointOrderRepo(db)
	ledgerStore := repo.NewMySQLLedgerStore(db)
	directory := repo.NewMySQLAccountDirectory(db)
	eventLog := repo.NewMySQLEventLog(db)
	bountyRepo := repo.NewMySQLBountyRepo(db)
	grantStore := repo.NewMySQLGrantStore(db)
	feeRepo := repo.NewMySQLFeeConfigRepo(db)
	taxRepo := repo.NewMySQLTaxRateRepo(db)

	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	rateCache := cache.NewRedisRateCache(rdb, cfg.Pricing.RateCacheTTL)

	// event bus backend per config
	var rabbitConn *amqp091.Connection
	var backend eventbus.Backend
	switch cfg.EventBus.Backend {
	case "", "inline":
		backend = eventbus.NewInlineBackend()
	case "workers":
		backend = eventbus.NewWorkerBackend(cfg.EventBus.Workers, cfg.EventBus.Buffer)
	case "rabbitmq":
		rabbitConn, err = amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := rabbitConn.Channel()
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		backend, err = queue.NewRabbitBackend(ch, logging.New("rabbit"))
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown event backend %q", cfg.EventBus.Backend)
	}

	bus, err := eventbus.New(backend, eventLog, logging.New("eventbus"))
	if err != nil {
		return nil, nil, err
	}

	// use cases
	pricing := usecase.NewPricing(feeRepo, taxRepo, rateCache, usecase.PricingConfig{
		DefaultFeeBps:     cfg.Pricing.DefaultFeeBps,
		MinFeeCents:       cfg.Pricing.MinFeeCents,
		FeeThresholdCents: cfg.Pricing.FeeThresholdCents,
	}, logging.New("pricing"))
	ledgerSvc := usecase.NewLedgerService(ledgerStore, logging.New("ledger"))
	cartSvc := usecase.NewCartService(cartRepo, grantStore, pricing, logging.New("cart"))
	orderSvc := usecase.NewOrderService(
		cartRepo, orderRepo, pointOrderRepo, ledgerSvc, directory, bus, idem, logging.New("order"))
	fulfillment := usecase.NewFulfillment(
		orderRepo, pointOrderRepo, bountyRepo, grantStore, ledgerSvc, directory, bus, logging.New("fulfillment"))
	fulfillment.Register(bus)

	// wallet top-up feed
	if err := setupKafkaListener(cfg, ledgerSvc, directory); err != nil {
		return nil, nil, err
	}

	// handlers + router + middleware
	ch := http.NewCartHandler(cartSvc, orderSvc, cartRepo)
	oh := http.NewOrderHandler(orderSvc, orderRepo, pointOrderRepo)
	wh := http.NewWalletHandler(ledgerSvc)
	th := http.NewTokenHandler(cfg)
	auth := middleware.NewAuthz(cfg)
	router := http.NewRouter(ch, oh, wh, th, auth)

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := bus.Close(closeCtx); err != nil {
			log.Error("event bus close", "err", err)
		}
		if rabbitConn != nil {
			_ = rabbitConn.Close()
		}
		_ = db.Close()
		_ = rdb.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupKafkaListener(cfg configs.Config, ledger *usecase.LedgerService, directory usecase.AccountDirectory) error {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.TopicTopUps == "" {
		return nil
	}
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return fmt.Errorf("kafka group: %w", err)
	}

	log := logging.New("kafka")
	h := kafka.NewWalletTopUpHandler(ledger, directory, log)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicTopUps}, h.Handle, log)

	go func() {
		if err := consumer.Start(context.Background()); err != nil {
			log.Error("kafka consumer stopped", "err", err)
		}
	}()
	return nil
}
