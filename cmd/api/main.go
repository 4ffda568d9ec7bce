package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/api/routes"
	"github.com/emekandu/kasuwa-backend/internal/auth"
	"github.com/emekandu/kasuwa-backend/internal/credits"
	"github.com/emekandu/kasuwa-backend/internal/inspections"
	"github.com/emekandu/kasuwa-backend/internal/items"
	"github.com/emekandu/kasuwa-backend/internal/notifications"
	"github.com/emekandu/kasuwa-backend/internal/offers"
	"github.com/emekandu/kasuwa-backend/internal/orders"
	"github.com/emekandu/kasuwa-backend/internal/payments"
	"github.com/emekandu/kasuwa-backend/internal/users"
	"github.com/emekandu/kasuwa-backend/pkg/auth/session"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db"
	"github.com/emekandu/kasuwa-backend/pkg/logger"
	"github.com/emekandu/kasuwa-backend/pkg/migrate"
	"github.com/emekandu/kasuwa-backend/pkg/outbox"
	"github.com/emekandu/kasuwa-backend/pkg/paystack"
	"github.com/emekandu/kasuwa-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	svcs, err := buildServices(cfg, logg, dbClient, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessionManager *session.Manager) (routes.Services, error) {
	conn := dbClient.DB()

	userRepo := users.NewRepository(conn)
	itemRepo := items.NewRepository(conn)
	offerRepo := offers.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	noteRepo := notifications.NewRepository(conn)
	creditRepo := credits.NewRepository(conn)
	reportRepo := inspections.NewRepository(conn)
	ledgerRepo := payments.NewLedgerRepository(conn)

	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	dispatcher, err := notifications.NewDispatcher(noteRepo, logg)
	if err != nil {
		return routes.Services{}, err
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	creditSvc, err := credits.NewService(
		creditRepo,
		func(tx *gorm.DB) credits.BalanceAdjuster { return userRepo.WithTx(tx) },
		dbClient,
	)
	if err != nil {
		return routes.Services{}, err
	}

	itemSvc, err := items.NewService(itemRepo, dbClient, creditSvc, cfg.Fees)
	if err != nil {
		return routes.Services{}, err
	}

	orderSvc, err := orders.NewService(orderRepo, itemRepo, ledgerRepo, userRepo, creditSvc, dbClient, outboxSvc, dispatcher, cfg.Fees)
	if err != nil {
		return routes.Services{}, err
	}

	offerSvc, err := offers.NewService(offerRepo, itemRepo, orderSvc, dbClient, outboxSvc, dispatcher)
	if err != nil {
		return routes.Services{}, err
	}

	gateway, err := paystack.NewClient(cfg.Paystack)
	if err != nil {
		return routes.Services{}, err
	}

	paymentSvc, err := payments.NewService(
		func(tx *gorm.DB) payments.OrderStore { return orderRepo.WithTx(tx) },
		itemRepo,
		ledgerRepo,
		userRepo,
		creditSvc,
		gateway,
		dbClient,
		outboxSvc,
		dispatcher,
		cfg.Fees,
		cfg.Paystack.CallbackURL,
	)
	if err != nil {
		return routes.Services{}, err
	}

	inspectionSvc, err := inspections.NewService(reportRepo, orderRepo, itemRepo, ledgerRepo, userRepo, creditSvc, dbClient, outboxSvc, dispatcher)
	if err != nil {
		return routes.Services{}, err
	}

	noteSvc, err := notifications.NewService(noteRepo)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:          authSvc,
		Items:         itemSvc,
		Offers:        offerSvc,
		Orders:        orderSvc,
		Payments:      paymentSvc,
		Inspections:   inspectionSvc,
		Notifications: noteSvc,
		Credits:       creditSvc,
	}, nil
}
