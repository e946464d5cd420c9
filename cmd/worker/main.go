package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/config"
	"github.com/pulsecrm/pulse-crm-backend/internal/events"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	mongorepo "github.com/pulsecrm/pulse-crm-backend/internal/repositories/mongodb"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
	"github.com/pulsecrm/pulse-crm-backend/internal/workers"
	"github.com/pulsecrm/pulse-crm-backend/pkg/gateway"
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

	// Services
	resolver := services.NewAudienceResolver(customerRepo)
	segmentService := services.NewSegmentService(segmentRepo, resolver, log)
	campaignService := services.NewCampaignService(campaignRepo, segmentRepo, logRepo, resolver, log)

	var gw gateway.Gateway
	if cfg.Gateway.Mock {
		gw = gateway.NewSimulatedGateway(cfg.Gateway.SuccessRate, cfg.Gateway.MinLatency, cfg.Gateway.MaxLatency)
		log.Info("using simulated vendor gateway", zap.Float64("successRate", cfg.Gateway.SuccessRate))
	} else {
		gw = gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.Secret)
		log.Info("using http vendor gateway", zap.String("baseUrl", cfg.Gateway.BaseURL))
	}

	// Event consumers
	consumers := events.NewConsumers(bus, campaignService, segmentService, log)
	if err := consumers.Start(ctx); err != nil {
		log.Fatal("failed to subscribe consumers", zap.Error(err))
	}

	// Background loops
	deliveryWorker := workers.NewDeliveryWorker(
		logRepo, campaignService, gw, log,
		cfg.Delivery.BatchSize, cfg.Delivery.Interval, cfg.Gateway.SendTimeout,
	)
	scheduler := workers.NewCampaignScheduler(campaignService, log, cfg.Scheduler.Interval)

	go deliveryWorker.Run(ctx)
	go scheduler.Run(ctx)

	log.Info("worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down worker")
	cancel()
}
