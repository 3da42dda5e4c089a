package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/blob"
	"github.com/vinabook/bookshop/internal/cache"
	"github.com/vinabook/bookshop/internal/cart"
	"github.com/vinabook/bookshop/internal/catalog"
	"github.com/vinabook/bookshop/internal/checkout"
	"github.com/vinabook/bookshop/internal/contact"
	"github.com/vinabook/bookshop/internal/email"
	"github.com/vinabook/bookshop/internal/inventory"
	"github.com/vinabook/bookshop/internal/loyalty"
	"github.com/vinabook/bookshop/internal/messaging"
	"github.com/vinabook/bookshop/internal/orders"
	"github.com/vinabook/bookshop/internal/telemetry"
	"github.com/vinabook/bookshop/internal/users"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "bookshop", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("bookshop", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	tokenSecret := os.Getenv("TOKEN_SECRET")
	if tokenSecret == "" {
		logger.Error("TOKEN_SECRET environment variable is required")
		os.Exit(1)
	}

	imageServiceURL := os.Getenv("IMAGE_SERVICE_URL")
	if imageServiceURL == "" {
		logger.Error("IMAGE_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, messaging.TopicCheckoutCompleted)
		defer func() { _ = producer.Close() }()
	}

	var listCache *cache.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		listCache = cache.New(redisAddr, 5*time.Minute)
		defer func() { _ = listCache.Close() }()
		if err := listCache.Ping(ctx); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var notifier email.Notifier = email.NewLogNotifier(logger)
	if mailRelayURL := os.Getenv("MAIL_RELAY_URL"); mailRelayURL != "" {
		notifier = email.NewRelayClient(mailRelayURL, httpClient)
	}

	tokens, err := auth.NewTokenManager(tokenSecret)
	if err != nil {
		logger.Error("failed to create token manager", "error", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	contactRepo := contact.NewRepository(db)
	orderRepo := orders.NewRepository(db)
	ledger := inventory.NewLedger(db)
	engine := loyalty.NewEngine(db)
	uploader := blob.NewClient(imageServiceURL, httpClient)

	checkoutService, err := checkout.NewService(db, userRepo, cartRepo, ledger, engine, orderRepo, notifier, producer, logger)
	if err != nil {
		logger.Error("failed to create checkout service", "error", err)
		os.Exit(1)
	}

	authHandler := auth.NewHandler(userRepo, tokens, logger)
	userHandler := users.NewHandler(userRepo, logger)
	catalogHandler := catalog.NewHandler(catalogRepo, userRepo, uploader, listCache, logger)
	cartHandler := cart.NewHandler(cartRepo, logger)
	contactHandler := contact.NewHandler(contactRepo, userRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, userRepo, notifier, logger)
	inventoryHandler := inventory.NewHandler(ledger, userRepo, logger)
	loyaltyHandler := loyalty.NewHandler(engine, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, logger)

	authed := tokens.Middleware(logger)
	route := func(h http.HandlerFunc) http.HandlerFunc { return telemetry.WithHTTPRoute(h) }
	private := func(h http.HandlerFunc) http.HandlerFunc { return telemetry.WithHTTPRoute(authed(h)) }

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("POST /api/v1/auth/register", route(authHandler.HandleRegister))
	mux.HandleFunc("POST /api/v1/auth/login", route(authHandler.HandleLogin))

	mux.HandleFunc("GET /api/v1/books", route(catalogHandler.HandleListBooks))
	mux.HandleFunc("GET /api/v1/books/{id}", route(catalogHandler.HandleGetBook))
	mux.HandleFunc("POST /api/v1/books", private(catalogHandler.HandleCreateBook))
	mux.HandleFunc("PUT /api/v1/books/{id}", private(catalogHandler.HandleUpdateBook))
	mux.HandleFunc("DELETE /api/v1/books/{id}", private(catalogHandler.HandleDeleteBook))

	mux.HandleFunc("GET /api/v1/books/{id}/stock", private(inventoryHandler.HandleGetStock))
	mux.HandleFunc("PUT /api/v1/books/{id}/stock", private(inventoryHandler.HandleSetStock))

	mux.HandleFunc("GET /api/v1/labels", route(catalogHandler.HandleListLabels))
	mux.HandleFunc("POST /api/v1/labels", private(catalogHandler.HandleCreateLabel))
	mux.HandleFunc("PUT /api/v1/labels/{id}", private(catalogHandler.HandleUpdateLabel))
	mux.HandleFunc("DELETE /api/v1/labels/{id}", private(catalogHandler.HandleDeleteLabel))

	mux.HandleFunc("GET /api/v1/menu", route(catalogHandler.HandleListMenu))
	mux.HandleFunc("POST /api/v1/menu", private(catalogHandler.HandleCreateMenuItem))
	mux.HandleFunc("PUT /api/v1/menu/{id}", private(catalogHandler.HandleUpdateMenuItem))
	mux.HandleFunc("DELETE /api/v1/menu/{id}", private(catalogHandler.HandleDeleteMenuItem))

	mux.HandleFunc("POST /api/v1/contact", route(contactHandler.HandleCreate))
	mux.HandleFunc("GET /api/v1/contacts", private(contactHandler.HandleList))
	mux.HandleFunc("DELETE /api/v1/contacts/{id}", private(contactHandler.HandleDelete))

	mux.HandleFunc("GET /api/v1/users", private(userHandler.HandleList))
	mux.HandleFunc("POST /api/v1/users", private(userHandler.HandleCreate))
	mux.HandleFunc("GET /api/v1/users/{id}", private(userHandler.HandleGet))
	mux.HandleFunc("PUT /api/v1/users/{id}", private(userHandler.HandleUpdate))
	mux.HandleFunc("DELETE /api/v1/users/{id}", private(userHandler.HandleDelete))

	mux.HandleFunc("GET /api/v1/cart", private(cartHandler.HandleList))
	mux.HandleFunc("POST /api/v1/cart", private(cartHandler.HandleAdd))
	mux.HandleFunc("PUT /api/v1/cart/{id}", private(cartHandler.HandleUpdate))
	mux.HandleFunc("DELETE /api/v1/cart/{id}", private(cartHandler.HandleDelete))
	mux.HandleFunc("POST /api/v1/cart/pay", private(checkoutHandler.HandlePayCart))
	mux.HandleFunc("POST /api/v1/order", private(checkoutHandler.HandleDirectOrder))

	mux.HandleFunc("GET /api/v1/orders", private(orderHandler.HandleList))
	mux.HandleFunc("GET /api/v1/orders/me", private(orderHandler.HandleListMine))
	mux.HandleFunc("GET /api/v1/orders/{id}", private(orderHandler.HandleGet))
	mux.HandleFunc("PUT /api/v1/orders/{id}/status", private(orderHandler.HandleUpdateStatus))
	mux.HandleFunc("DELETE /api/v1/orders/{id}", private(orderHandler.HandleDelete))

	mux.HandleFunc("GET /api/v1/reports/best-sellers", private(orderHandler.HandleBestSellers))
	mux.HandleFunc("GET /api/v1/reports/order-volume", private(orderHandler.HandleVolume))

	mux.HandleFunc("GET /api/v1/loyalty/me", private(loyaltyHandler.HandleMe))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "bookshop",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting bookshop server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
