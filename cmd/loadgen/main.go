package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sdrelite/marketbot/internal/adapter/storage"
	"github.com/sdrelite/marketbot/internal/config"
	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/core/service"
)

// Drives concurrent pay calls against a fixed balance and verifies the
// ledger conservation invariant: the wallet never goes negative and the
// debited total equals successes times the fee.
const (
	mysqlDSN       = "root:root@tcp(localhost:3306)/marketbot?parseTime=true"
	redisAddr      = "localhost:6379"
	sellerID       = "loadgen-seller"
	productCount   = 50
	initialBalance = 100
	productPrice   = 50 // 20% fee = 10, so exactly 10 pays can succeed
	queueSize      = 100
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous run data
	db.ExecContext(ctx, `DELETE FROM products WHERE user_id = ?`, sellerID)
	db.ExecContext(ctx, `DELETE FROM wallets WHERE user_id = ?`, sellerID)
	keys, _ := rdb.Keys(ctx, "lock:pay:"+sellerID+":*").Result()
	for _, k := range keys {
		rdb.Del(ctx, k)
	}

	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)

	feePolicy, err := domain.NewFeePolicy(config.Default().Market.FeePercent())
	if err != nil {
		log.Fatalf("bad fee policy: %v", err)
	}

	svc := service.NewLifecycleService(store, store, store, cache, service.Config{
		FeePolicy:    feePolicy,
		Admins:       []string{"loadgen-admin-1", "loadgen-admin-2"},
		StoreTimeout: 5 * time.Second,
		LockTTL:      30 * time.Second,
		QueueSize:    queueSize,
	})
	defer svc.Close()

	// Drain the event queue in background
	go func() {
		for range svc.Events() {
		}
	}()

	if _, err := svc.Credit(ctx, sellerID, decimal.NewFromInt(initialBalance)); err != nil {
		log.Fatalf("failed to seed wallet: %v", err)
	}

	names := make([]string, 0, productCount)
	for i := 0; i < productCount; i++ {
		name := fmt.Sprintf("loadgen-item-%03d", i)
		if _, err := svc.Submit(ctx, sellerID, name, decimal.NewFromInt(productPrice)); err != nil {
			log.Fatalf("failed to submit %s: %v", name, err)
		}
		names = append(names, name)
	}

	var (
		successCount      atomic.Int32
		insufficientCount atomic.Int32
		otherCount        atomic.Int32
		wg                sync.WaitGroup
	)

	start := time.Now()
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := svc.Pay(ctx, sellerID, name)
			switch {
			case err == nil:
				successCount.Add(1)
			case isInsufficient(err):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("pay %s: %v", name, err)
			}
		}(name)
	}
	wg.Wait()
	elapsed := time.Since(start)

	balance, err := svc.Balance(ctx, sellerID)
	if err != nil {
		log.Fatalf("failed to read final balance: %v", err)
	}

	fee, _ := feePolicy.ListingFee(decimal.NewFromInt(productPrice))
	debited := fee.Mul(decimal.NewFromInt32(successCount.Load()))
	expected := decimal.NewFromInt(initialBalance).Sub(debited)

	log.Printf("pays: %d ok, %d insufficient, %d failed in %s",
		successCount.Load(), insufficientCount.Load(), otherCount.Load(), elapsed)
	log.Printf("final balance: %s (expected %s)", balance, expected)

	if balance.Sign() < 0 {
		log.Fatalf("INVARIANT VIOLATED: balance went negative: %s", balance)
	}
	if !balance.Equal(expected) {
		log.Fatalf("INVARIANT VIOLATED: balance %s != expected %s", balance, expected)
	}
	log.Println("ledger conservation holds")
}

func isInsufficient(err error) bool {
	return errors.Is(err, service.ErrInsufficientFunds)
}
