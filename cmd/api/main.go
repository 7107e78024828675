package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"onlinestore/internal/config"
	"onlinestore/internal/handler"
	"onlinestore/internal/infra/cache"
	"onlinestore/internal/infra/db"
	"onlinestore/internal/infra/memory"
	"onlinestore/internal/infra/messaging"
	"onlinestore/internal/infra/payment"
	infraRepo "onlinestore/internal/infra/repository"
	"onlinestore/internal/metrics"
	repo "onlinestore/internal/repository"
	"onlinestore/internal/retry"
	"onlinestore/internal/server"
	"onlinestore/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	//.envは無くてもよい（環境変数で渡す場合）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	e := server.New()
	logger := e.Logger

	//ストア
	var tx repo.TransactionManager
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		tx = memory.NewStore()
		logger.Warnj(log.JSON{"msg": "using in-memory store"})
	default:
		gormDB, err := db.Connect(db.DSN(cfg))
		if err != nil {
			logger.Fatal(err)
		}
		if err := db.Migrate(gormDB); err != nil {
			logger.Fatal(err)
		}
		tx = infraRepo.NewTxManagerGorm(gormDB)
	}

	//表示キャッシュ
	var viewCache repo.ViewCache = cache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		defer client.Close()
		viewCache = cache.NewRedisCache(client)
	}

	//注文イベント
	var events repo.EventPublisher = messaging.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		events = kp
	}

	//メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := usecase.Deps{
		Logger:   logger,
		Metrics:  m,
		Retry:    retry.New(cfg.RetryMaxAttempts, cfg.RetryDelay, repo.IsTransientConflict),
		Cache:    viewCache,
		CacheTTL: cfg.CacheTTL,
		Events:   events,
	}

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		APIKey:    cfg.StripeAPIKey,
		Currency:  cfg.StripeCurrency,
		AppDomain: cfg.AppDomain,
	})

	//Usecase生成
	inventoryUC := usecase.NewInventoryUsecase(tx, deps)
	orderUC := usecase.NewOrderUsecase(tx, inventoryUC, gateway, deps)
	cartUC := usecase.NewCartUsecase(tx, orderUC, inventoryUC, deps)
	historyUC := usecase.NewHistoryUsecase(tx, deps)
	paymentUC := usecase.NewPaymentUsecase(tx, historyUC, deps)
	productUC := usecase.NewProductUsecase(tx, deps)
	userUC := usecase.NewUserUsecase(tx)

	//Handler生成
	parse := func(payload []byte, sig string) (usecase.PaymentEvent, error) {
		return payment.ParseWebhook(payload, sig, cfg.StripeWebhookSecret)
	}
	server.RegisterRoutes(e, cfg, userUC, m, server.Handlers{
		Cart:    handler.NewCartHandler(cartUC),
		Order:   handler.NewOrderHandler(orderUC, historyUC),
		Webhook: handler.NewWebhookHandler(paymentUC, parse),
		Admin:   handler.NewAdminHandler(productUC, inventoryUC),
	})

	//Server起動
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, e, cfg.Addr()); err != nil {
		logger.Fatal(err)
	}
}
