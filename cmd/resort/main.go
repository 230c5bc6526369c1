package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resort/internal/app/catalog"
	"resort/internal/app/commands"
	"resort/internal/app/handlers"
	"resort/internal/app/middleware"
	"resort/internal/app/queries"
	"resort/internal/app/reservations"
	"resort/internal/app/uow"
	"resort/internal/infra/broker/kafka"
	"resort/internal/infra/broker/logbroker"
	"resort/internal/infra/broker/rabbitmq"
	redisstore "resort/internal/infra/cache/redis"
	"resort/internal/infra/config"
	mongostore "resort/internal/infra/db/mongo"
	mysqlstore "resort/internal/infra/db/mysql"
	ginserver "resort/internal/infra/http/gin"
	"resort/internal/infra/obs"
	"resort/internal/infra/outbox"
	"resort/internal/infra/storage/memory"
	"resort/internal/infra/storage/s3"
	"resort/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger, cfg.ShutdownTimeout)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Probes: app.probes}, app.handlers)

	go func() {
		if err := app.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "broker", cfg.Broker)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	relay    *outbox.Worker
	probes   map[string]obs.Probe
	closers  []func(context.Context) error
}

func (a *application) close(logger *slog.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

// backend is one persistence choice: the transactional factory, the relay's view of the
// outbox and the seeder the catalog is imported through.
type backend struct {
	factory uow.UoWFactory
	outbox  outbox.Source
	seeder  catalog.Seeder
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{probes: map[string]obs.Probe{}}

	var mongoClient *mongostore.Client
	if cfg.StoreDriver == config.StoreMongo || cfg.IdempotencyDriver == config.IdempotencyMongo {
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		mongoClient = client
		app.closers = append(app.closers, client.Close)
		app.probes["mongo"] = client.Ping
	}

	be, err := buildBackend(ctx, cfg, logger, app, mongoClient)
	if err != nil {
		return nil, err
	}
	if err := importCatalog(ctx, cfg, logger, be.seeder); err != nil {
		return nil, err
	}

	idStore, err := buildIdempotencyStore(ctx, cfg, app, mongoClient)
	if err != nil {
		return nil, err
	}
	producer, err := buildProducer(cfg, logger, app)
	if err != nil {
		return nil, err
	}

	app.relay = &outbox.Worker{
		Store:       be.outbox,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}

	manager := reservations.NewManager(be.factory, logger)
	manager.Workers = cfg.PriceWorkers

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	handlers.Register(commandBus, queryBus, manager, cfg.Currency)

	v := validation.New()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(v),
		middleware.Idempotency(idStore, nil),
		middleware.OutboxFlush(app.relay, logger),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(v),
		middleware.ReadOnlyQueries(be.factory),
	)

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
		Units:   ginserver.UnitHandler{Queries: queryBusWithMiddleware},
	}
	return app, nil
}

func buildBackend(ctx context.Context, cfg config.Config, logger *slog.Logger, app *application, mongoClient *mongostore.Client) (backend, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		if err := mongoClient.EnsureIndexes(ctx); err != nil {
			return backend{}, fmt.Errorf("mongo indexes: %w", err)
		}
		return backend{
			factory: mongostore.Factory{DB: mongoClient.DB},
			outbox:  mongostore.NewOutboxStore(mongoClient.DB),
			seeder:  mongostore.NewStore(mongoClient.DB),
		}, nil
	case config.StoreMySQL:
		db, err := mysqlstore.Open(cfg.MySQLDSN, logger)
		if err != nil {
			return backend{}, fmt.Errorf("open mysql: %w", err)
		}
		if err := mysqlstore.Migrate(ctx, db); err != nil {
			return backend{}, fmt.Errorf("migrate mysql: %w", err)
		}
		app.probes["mysql"] = func(ctx context.Context) error { return mysqlstore.Ping(ctx, db) }
		app.closers = append(app.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		return backend{
			factory: mysqlstore.Factory{DB: db},
			outbox:  mysqlstore.NewOutboxStore(db),
			seeder:  mysqlstore.NewStore(db),
		}, nil
	default:
		store := memory.NewStore()
		return backend{factory: memory.NewUoWFactory(store, cfg.UnitLocks), outbox: store, seeder: store}, nil
	}
}

func importCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger, seeder catalog.Seeder) error {
	var (
		summary catalog.Summary
		err     error
		from    string
	)
	switch {
	case cfg.CatalogS3Key != "":
		from = "s3://" + cfg.S3Bucket + "/" + cfg.CatalogS3Key
		source, serr := s3.NewCatalogSource(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if serr != nil {
			return fmt.Errorf("catalog source: %w", serr)
		}
		body, oerr := source.Open(ctx, cfg.CatalogS3Key)
		if oerr != nil {
			return fmt.Errorf("open %s: %w", from, oerr)
		}
		defer body.Close()
		summary, err = catalog.Load(ctx, seeder, body, time.Now().UTC())
	case cfg.CatalogPath != "":
		from = cfg.CatalogPath
		summary, err = catalog.LoadFile(ctx, seeder, cfg.CatalogPath, time.Now().UTC())
	default:
		logger.Warn("no catalog configured; starting with the stored catalog")
		return nil
	}
	if err != nil {
		return fmt.Errorf("import catalog %s: %w", from, err)
	}
	logger.Info("catalog imported",
		"from", from,
		"chalets", summary.Chalets,
		"rate_rules", summary.RateRules,
		"add_ons", summary.AddOns,
		"settings", summary.Settings,
	)
	return nil
}

func buildIdempotencyStore(ctx context.Context, cfg config.Config, app *application, mongoClient *mongostore.Client) (middleware.IdempotencyStore, error) {
	switch cfg.IdempotencyDriver {
	case config.IdempotencyRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, err
		}
		app.probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		return redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL), nil
	case config.IdempotencyMongo:
		return mongostore.NewIdempotencyStore(ctx, mongoClient.DB, cfg.IdempotencyTTL)
	default:
		return memory.NewIdempotencyStore(cfg.IdempotencyTTL), nil
	}
}

func buildProducer(cfg config.Config, logger *slog.Logger, app *application) (outbox.Producer, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		return p, nil
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		return p, nil
	default:
		return logbroker.Producer{Logger: logger}, nil
	}
}
