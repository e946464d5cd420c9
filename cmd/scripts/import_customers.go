package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/config"
	"github.com/pulsecrm/pulse-crm-backend/internal/events"
	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	mongorepo "github.com/pulsecrm/pulse-crm-backend/internal/repositories/mongodb"
	"github.com/pulsecrm/pulse-crm-backend/internal/services"
	"github.com/pulsecrm/pulse-crm-backend/pkg/mongodb"
)

// Imports customers from a CSV file and announces the batch on the bus so
// the worker refreshes segment audience caches.
//
// Expected columns: name, email, location, totalSpend, orderCount,
// lastOrderDate (YYYY-MM-DD, optional), isActive, tags (semicolon-separated).
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	if len(os.Args) < 2 {
		log.Fatal("usage: import_customers <csv-file>")
	}
	csvPath := os.Args[1]

	ctx := context.Background()

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB.URI)
	if err != nil {
		log.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDB.Database)

	rdb, err := events.NewRedisClient(ctx, cfg.Redis.URL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	bus := events.NewRedisBus(rdb, log)

	customerService := services.NewCustomerService(mongorepo.NewCustomerRepository(db))

	customers, skipped, err := readCustomers(csvPath)
	if err != nil {
		log.Fatal("failed to read csv", zap.Error(err))
	}

	inserted, err := customerService.BulkCreateCustomers(ctx, customers)
	if err != nil {
		log.Fatal("import failed", zap.Error(err))
	}

	ids := make([]string, 0, len(inserted))
	for _, customer := range inserted {
		ids = append(ids, customer.ID.Hex())
	}
	if len(ids) > 0 {
		if err := bus.Publish(ctx, events.ChannelCustomerBulkCreate, events.CustomerChanged{CustomerIDs: ids}); err != nil {
			log.Error("failed to publish customer.bulk.create", zap.Error(err))
		}
	}

	log.Info("import finished",
		zap.Int("imported", len(inserted)),
		zap.Int("duplicates", len(customers)-len(inserted)),
		zap.Int("skippedRows", skipped))
}

// readCustomers parses the CSV into customer models, skipping malformed rows.
func readCustomers(path string) ([]*models.Customer, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(records) < 2 {
		return nil, 0, fmt.Errorf("CSV file is empty or has only a header")
	}

	var customers []*models.Customer
	skipped := 0
	for i, record := range records {
		// Skip header
		if i == 0 {
			continue
		}
		if len(record) < 2 || record[0] == "" || record[1] == "" {
			skipped++
			continue
		}

		customer := &models.Customer{
			Name:     record[0],
			Email:    strings.ToLower(strings.TrimSpace(record[1])),
			IsActive: true,
		}
		if len(record) > 2 {
			customer.Location = record[2]
		}
		if len(record) > 3 && record[3] != "" {
			spend, err := strconv.ParseFloat(record[3], 64)
			if err != nil {
				skipped++
				continue
			}
			customer.TotalSpend = spend
		}
		if len(record) > 4 && record[4] != "" {
			orders, err := strconv.Atoi(record[4])
			if err != nil {
				skipped++
				continue
			}
			customer.OrderCount = orders
		}
		if len(record) > 5 && record[5] != "" {
			lastOrder, err := time.Parse("2006-01-02", record[5])
			if err != nil {
				skipped++
				continue
			}
			customer.LastOrderDate = &lastOrder
		}
		if len(record) > 6 && record[6] != "" {
			active, err := strconv.ParseBool(record[6])
			if err != nil {
				skipped++
				continue
			}
			customer.IsActive = active
		}
		if len(record) > 7 && record[7] != "" {
			customer.Tags = strings.Split(record[7], ";")
		}

		customers = append(customers, customer)
	}
	return customers, skipped, nil
}
