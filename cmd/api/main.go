package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-intake/internal/api/http"
	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/counters"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/persistence"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/internal/threading"
	"github.com/spec-kit/ticket-intake/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	if cfg.Webhook.Secret == "" {
		logger.Warn("WEBHOOK_SECRET is empty; inbound webhook signatures are not checked")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	orgRepo := repository.NewOrganizationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	store := counters.NewRedisStore(redis.Client, "intake")
	dispatcher := events.NewInMemoryDispatcher()

	notifications := service.NewNotificationService(dispatcher, redis, cfg.Redis.NotificationChannel, logger)
	worker.StartNotificationWorker(notifications, logger)

	tokenService := service.NewTokenService(service.TokenDependencies{
		TokenRepo:  tokenRepo,
		TicketRepo: ticketRepo,
		OutboxRepo: outboxRepo,
		Config:     cfg.Token,
		Intake:     cfg.Intake,
		Logger:     logger,
		Metrics:    metrics,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		TicketRepo:       ticketRepo,
		OrganizationRepo: orgRepo,
		UserRepo:         userRepo,
		AttachmentRepo:   attachmentRepo,
		OutboxRepo:       outboxRepo,
		RateLimiter:      service.NewRateLimiter(store, cfg.RateLimit, logger),
		AbuseGuard: service.NewAbuseGuard(service.AbuseGuardDependencies{
			Store:   store,
			Config:  cfg.Abuse,
			Logger:  logger,
			Metrics: metrics,
		}),
		TokenService: tokenService,
		Dispatcher:   dispatcher,
		Config:       cfg.Intake,
		Logger:       logger,
		Metrics:      metrics,
	})
	replyIngestor := service.NewReplyIngestor(service.ReplyDependencies{
		TicketRepo:     ticketRepo,
		CommentRepo:    commentRepo,
		UserRepo:       userRepo,
		AttachmentRepo: attachmentRepo,
		Dispatcher:     dispatcher,
		Config:         cfg.Intake,
		Logger:         logger,
		Metrics:        metrics,
	})
	portalService := service.NewPortalService(service.PortalDependencies{
		TicketRepo:     ticketRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
	})
	grants := auth.NewGrantManager(cfg.Portal.JWTSecret, cfg.Portal.GrantTTL())

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		ProxyHeader: cfg.App.ProxyHeader,
		BodyLimit:   cfg.Webhook.MaxBodyBytes,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Webhook: handlers.NewWebhookHandler(handlers.WebhookDependencies{
			Secret:   cfg.Webhook.Secret,
			Resolver: threading.NewResolver(ticketRepo, commentRepo, logger),
			Replies:  replyIngestor,
			Intake:   intakeService,
			Logger:   logger,
		}),
		Form: handlers.NewIntakeFormHandler(intakeService, cfg.Intake.BaseURL, logger),
		Portal: handlers.NewPortalHandler(handlers.PortalHandlerDependencies{
			TokenService:  tokenService,
			PortalService: portalService,
			Grants:        grants,
			Config:        cfg.Portal,
			Logger:        logger,
		}),
		GrantMiddleware: auth.NewGrantMiddleware(grants, cfg.Portal.CookieName),
		Metrics:         registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
