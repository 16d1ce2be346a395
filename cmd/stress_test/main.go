package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/inventory-booking/internal/adapter/storage"
	"github.com/rl1809/inventory-booking/internal/config"
	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/core/service"
	"github.com/rl1809/inventory-booking/migrations"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, storage.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	// Clear previous test data
	if err := cleanupFixtures(ctx, db); err != nil {
		log.Fatalf("failed to clean up fixtures: %v", err)
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)

	item, err := mysqlAdapter.CreateItem(ctx, domain.InventoryItem{
		Title:          itemTitle,
		Description:    "Concurrent booking target",
		RemainingCount: initialStock,
		ExpirationDate: time.Now().UTC().AddDate(1, 0, 0),
	})
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	// One member per request so the booking cap never interferes
	memberIDs := make([]int64, totalRequests)
	for i := range memberIDs {
		m, err := mysqlAdapter.CreateMember(ctx, domain.Member{
			Name:       stressMemberName,
			Surname:    fmt.Sprintf("User%d", i),
			DateJoined: time.Now().UTC(),
		})
		if err != nil {
			log.Fatalf("failed to create member: %v", err)
		}
		memberIDs[i] = m.ID
	}

	bookingService := service.NewBookingService(service.Repositories{
		Tx:        mysqlAdapter,
		Members:   mysqlAdapter,
		Inventory: mysqlAdapter,
		Bookings:  mysqlAdapter,
	}, service.WithEventQueueSize(totalRequests))
	defer bookingService.Close()

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for _, memberID := range memberIDs {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()

			_, err := bookingService.BookItem(ctx, service.BookItemInput{MemberID: memberID, ItemTitle: itemTitle})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(memberID)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d bookings succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	// Verify final stock in MySQL
	final, err := mysqlAdapter.GetItem(ctx, item.ID)
	if err != nil || final == nil {
		log.Fatalf("failed to reload item: %v", err)
	}
	fmt.Printf("Final Remaining Count: %d\n", final.RemainingCount)

	if final.RemainingCount == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.RemainingCount)
	}
}
