package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/api/routes"
	"github.com/pulsecrm/pulse-crm-backend/internal/config"
	"github.com/pulsecrm/pulse-crm-backend/internal/events"
	"github.com/pulsecrm/pulse-crm-backend/internal/handlers"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	mongorepo "github.com/pulsecrm/pulse-crm-backend/internal/repositories/mongodb"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
	"github.com/pulsecrm/pulse-crm-backend/pkg/jwt"
	"github.com/pulsecrm/pulse-crm-backend/pkg/mongodb"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB.URI)
	if err != nil {
		log.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error("error disconnecting from mongodb", zap.Error(err))
		}
	}()
	db := mongoClient.Database(cfg.MongoDB.Database)

	rdb, err := events.NewRedisClient(ctx, cfg.Redis.URL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	bus := events.NewRedisBus(rdb, log)

	// Repositories
	var customerRepo repositories.CustomerRepository = mongorepo.NewCustomerRepository(db)
	var segmentRepo repositories.SegmentRepository = mongorepo.NewSegmentRepository(db)
	var campaignRepo repositories.CampaignRepository = mongorepo.NewCampaignRepository(db)
	var logRepo repositories.CommunicationLogRepository = mongorepo.NewCommunicationLogRepository(db)
	var adminRepo repositories.AdminUserRepository = mongorepo.NewAdminUserRepository(db)

	// Services
	tokens := jwt.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresIn)*time.Second)
	resolver := services.NewAudienceResolver(customerRepo)
	authService := services.NewAuthService(adminRepo, tokens)
	customerService := services.NewCustomerService(customerRepo)
	segmentService := services.NewSegmentService(segmentRepo, resolver, log)
	campaignService := services.NewCampaignService(campaignRepo, segmentRepo, logRepo, resolver, log)

	// Handlers
	router := routes.SetupRouter(cfg, tokens, routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService),
		Customer: handlers.NewCustomerHandler(customerService, bus, log),
		Segment:  handlers.NewSegmentHandler(segmentService),
		Campaign: handlers.NewCampaignHandler(campaignService, bus, log),
		Webhook:  handlers.NewWebhookHandler(bus, log),
	}, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("api server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down api server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("api server exited")
}
