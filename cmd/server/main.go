// Package main runs the federation HTTP server with payment status push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fedsport/backend/config"
	"github.com/fedsport/backend/internal/access"
	"github.com/fedsport/backend/internal/affiliations"
	"github.com/fedsport/backend/internal/auth"
	"github.com/fedsport/backend/internal/checkout"
	"github.com/fedsport/backend/internal/metrics"
	"github.com/fedsport/backend/internal/middleware"
	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/internal/payments/providers"
	"github.com/fedsport/backend/internal/realtime"
	"github.com/fedsport/backend/internal/registrations"
	"github.com/fedsport/backend/internal/store/memory"
	"github.com/fedsport/backend/internal/store/postgres"
	"github.com/fedsport/backend/internal/worker"
	"github.com/fedsport/backend/pkg/database"
	"github.com/fedsport/backend/pkg/queue"
	"github.com/fedsport/backend/pkg/redis"
	"github.com/fedsport/backend/pkg/response"
	"github.com/fedsport/backend/pkg/storage"
)

// stores groups the persistence backends selected by STORE_DRIVER.
type stores struct {
	affiliations  affiliations.Store
	registrations registrations.Store
	fees          registrations.FeeSchedule
	checkout      checkout.Store
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var st stores
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := memory.New()
		st = stores{mem.Affiliations(), mem.Registrations(), mem.Fees(), mem.Checkout()}
		logger.Warn("using in-memory store; state is lost on restart")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		st = stores{
			postgres.NewAffiliationRepository(pool),
			postgres.NewRegistrationRepository(pool),
			postgres.NewFeeRepository(pool),
			postgres.NewCheckoutRepository(pool),
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.DocumentsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			DocumentsBucket:      cfg.AWS.DocumentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gateway, err := providers.New(cfg.Payments)
	if err != nil {
		logger.Fatal("payment provider", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Payment status push
	var hub *realtime.Hub
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	// Affiliations
	engine := affiliations.NewEngine(st.affiliations, m, logger)
	var docs *affiliations.Documents
	if s3Client != nil {
		docs = affiliations.NewDocuments(st.affiliations, s3Client, logger)
	}
	affiliationHandler := affiliations.NewHandler(engine, docs)

	// Cart
	cart := registrations.NewCart(st.registrations, st.fees, m, logger)
	cartHandler := registrations.NewHandler(cart)

	// Checkout
	orch := checkout.NewOrchestrator(st.checkout, gateway, cfg.Payments, m, logger)
	orch.SetNotifier(hub)
	checkoutHandler := checkout.NewHandler(orch)

	var callbacks checkout.CallbackQueue
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if rdb != nil {
		jobQueue := queue.NewQueue(rdb.Client, logger)
		callbacks = jobQueue
		if cfg.Store.Driver == config.StoreDriverMemory {
			// cmd/worker cannot see this process's memory, so consume here.
			go worker.NewCallbackProcessor(orch, jobQueue, logger).Run(workerCtx)
			logger.Info("in-process payment callback worker started")
		}
	}
	webhookHandler := checkout.NewWebhookHandler(orch, gateway, callbacks, logger)

	authenticate := func(token string) (models.Actor, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return models.Actor{}, err
		}
		return claims.Actor(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		if rdb != nil {
			if err := rdb.Healthy(c.Request.Context()); err != nil {
				response.ServiceUnavailable(c, "redis unavailable")
				return
			}
		}
		response.OK(c, gin.H{"status": "ok", "store": cfg.Store.Driver})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Affiliations
		api.POST("/affiliations", middleware.RequireCapability(access.SubmitAffiliation), affiliationHandler.Submit)
		api.GET("/me/affiliations", middleware.RequireCapability(access.ListOwnAffiliations), affiliationHandler.ListMine)
		api.GET("/affiliations/:id", middleware.RequireCapability(access.ViewAffiliation), affiliationHandler.Get)
		api.GET("/approvals/documents", middleware.RequireCapability(access.ListPendingDocuments), affiliationHandler.PendingDocuments)
		api.GET("/approvals/technical", middleware.RequireCapability(access.ListPendingTechnical), affiliationHandler.PendingTechnical)
		api.POST("/affiliations/:id/document-gate", middleware.RequireCapability(access.DecideDocumentGate), affiliationHandler.DecideDocument)
		api.POST("/affiliations/:id/technical-gate", middleware.RequireCapability(access.DecideTechnicalGate), affiliationHandler.DecideTechnical)
		api.POST("/affiliations/:id/documents", middleware.RequireCapability(access.UploadAffiliationDocument), affiliationHandler.UploadDocument)
		api.POST("/affiliations/:id/documents/upload-url", middleware.RequireCapability(access.UploadAffiliationDocument), affiliationHandler.UploadURL)
		api.GET("/affiliations/:id/documents", middleware.RequireCapability(access.ViewAffiliationDocuments), affiliationHandler.ListDocuments)

		// Cart and registrations
		api.GET("/me/cart", middleware.RequireCapability(access.ManageCart), cartHandler.MyCart)
		api.POST("/cart/items", middleware.RequireCapability(access.ManageCart), cartHandler.AddItem)
		api.PATCH("/cart/items/:id", middleware.RequireCapability(access.ManageCart), cartHandler.UpdateItem)
		api.DELETE("/cart/items/:id", middleware.RequireCapability(access.ManageCart), cartHandler.RemoveItem)
		api.GET("/me/registrations", middleware.RequireCapability(access.ListOwnRegistrations), cartHandler.MyRegistrations)
		api.POST("/registrations/:id/cancel", middleware.RequireCapability(access.CancelRegistration), checkoutHandler.CancelRegistration)

		// Checkout and payments
		api.POST("/checkout", middleware.RequireCapability(access.CreateCheckout), checkoutHandler.Checkout)
		api.GET("/payments/:id", middleware.RequireCapability(access.ViewPayment), checkoutHandler.GetPayment)
		api.GET("/me/payments", middleware.RequireCapability(access.ListOwnPayments), checkoutHandler.ListMyPayments)
	}

	// Webhooks (no JWT; the provider verifies the signature)
	router.POST("/webhooks/payments/:provider", webhookHandler.PaymentCallback)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/payments/:id", realtime.ServeWs(hub, orch, authenticate, realtime.Upgrader(cfg.Server.CORSAllowedOrigins), logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
