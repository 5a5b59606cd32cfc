package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appaudit "github.com/flashcart/flashcart/internal/application/audit"
	appcoupon "github.com/flashcart/flashcart/internal/application/coupon"
	appinventory "github.com/flashcart/flashcart/internal/application/inventory"
	apporder "github.com/flashcart/flashcart/internal/application/order"
	apppoint "github.com/flashcart/flashcart/internal/application/point"
	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	dominv "github.com/flashcart/flashcart/internal/domain/inventory"
	"github.com/flashcart/flashcart/internal/infrastructure/id"
	"github.com/flashcart/flashcart/internal/infrastructure/memory"
	"github.com/flashcart/flashcart/internal/infrastructure/observability/oteltrace"
	"github.com/flashcart/flashcart/internal/infrastructure/observability/prometrics"
	"github.com/flashcart/flashcart/internal/infrastructure/observability/telemetry"
	"github.com/flashcart/flashcart/internal/infrastructure/observability/zaplogger"
	"github.com/flashcart/flashcart/internal/infrastructure/outbox"
	"github.com/flashcart/flashcart/internal/infrastructure/pricing"
	"github.com/flashcart/flashcart/internal/infrastructure/queue"
	"github.com/flashcart/flashcart/internal/observability"
	httppresentation "github.com/flashcart/flashcart/internal/presentation/http"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "flashcart")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("ADDR", ":8080")

	logger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)

	registry := prometrics.New(serviceName, "")
	counters := map[string]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			observability.MUsecaseRequests,
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			observability.MHTTPRequests,
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MCouponIssueOutcomes: registry.Counter(
			observability.MCouponIssueOutcomes,
			"Coupon issuance outcomes by kind.",
			"outcome",
		),
		observability.MQueueRedeliveries: registry.Counter(
			observability.MQueueRedeliveries,
			"Messages redelivered after a failed consumption attempt.",
			"key",
		),
	}
	histograms := map[string]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			observability.MUsecaseDuration,
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			observability.MHTTPRequestDuration,
			"Duration of HTTP request handling in seconds.",
			nil,
			"method", "route", "status",
		),
	}
	tel := telemetry.New(oteltrace.New(serviceName), logger, counters, histograms)

	inventoryRepo := memory.NewInventoryRepository()
	pointRepo := memory.NewPointRepository()
	historyRepo := memory.NewPointHistoryRepository()
	couponRepo := memory.NewCouponRepository()
	orderRepo := memory.NewOrderRepository()
	idGen := id.NewUUIDGenerator()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(logger)
	bus.Start(rootCtx)
	defer bus.Stop(context.Background())

	inventoryLedger := appinventory.NewLedger(inventoryRepo, logger)
	pointLedger := apppoint.NewLedger(pointRepo, historyRepo, idGen, logger)

	consumer := appcoupon.NewConsumer(couponRepo, bus, tel)
	issueQueue := queue.New(consumer.Handle, logger, tel,
		queue.WithMaxDeliveries(getenvInt("QUEUE_MAX_DELIVERIES", 3)),
	)
	issueQueue.Start(rootCtx)
	defer issueQueue.Stop(context.Background())

	couponPipeline := appcoupon.NewPipeline(couponRepo, issueQueue, idGen, logger)

	quoter := pricing.NewTableQuoter()
	settlement := apporder.NewEngine(orderRepo, inventoryLedger, pointLedger, quoter, idGen, bus, tel)

	auditWorker := appaudit.New(bus, logger)
	auditWorker.Start()

	seedCatalog(rootCtx, inventoryRepo, quoter, logger)
	seedCoupons(rootCtx, couponRepo, logger)

	handler := httppresentation.NewHandler(couponPipeline, settlement, pointLedger, logger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}

// seedCatalog loads a small demo catalog so the service answers immediately
// after startup. Real deployments replace this with durable catalog setup.
func seedCatalog(ctx context.Context, repo *memory.InventoryRepository, quoter *pricing.TableQuoter, logger observability.Logger) {
	seeds := []struct {
		id        string
		productID string
		price     int64
		stock     int
	}{
		{"opt-1", "prod-1", 12_000, 100},
		{"opt-2", "prod-1", 15_000, 50},
		{"opt-3", "prod-2", 8_500, 200},
	}
	for _, s := range seeds {
		option, err := dominv.NewProductOption(s.id, s.productID, s.price, s.stock)
		if err != nil {
			logger.Error("seed_option_invalid", observability.F("option_id", s.id), observability.F("error", err.Error()))
			continue
		}
		if err := repo.Create(ctx, option); err != nil {
			logger.Error("seed_option_failed", observability.F("option_id", s.id), observability.F("error", err.Error()))
			continue
		}
		quoter.LoadOption(option)
	}
	logger.Info("catalog_seeded", observability.F("options", len(seeds)))
}

// seedCoupons registers a demo flash-sale coupon; stock size comes from
// COUPON_SEED_STOCK so load tests can tune contention.
func seedCoupons(ctx context.Context, repo *memory.CouponRepository, logger observability.Logger) {
	stock := getenvInt("COUPON_SEED_STOCK", 100)
	def, err := domcoupon.NewDefinition("launch-100", "Launch Week", stock)
	if err != nil {
		logger.Error("seed_coupon_invalid", observability.F("error", err.Error()))
		return
	}
	if err := repo.CreateDefinition(ctx, def); err != nil {
		logger.Error("seed_coupon_failed", observability.F("error", err.Error()))
		return
	}
	logger.Info("coupon_seeded",
		observability.F("coupon_id", def.ID),
		observability.F("stock", def.Remaining),
	)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
