package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/cart"
	"github.com/sunucuics/ics-commerce-core/internal/catalog"
	"github.com/sunucuics/ics-commerce-core/internal/checkout"
	"github.com/sunucuics/ics-commerce-core/internal/config"
	"github.com/sunucuics/ics-commerce-core/internal/httpx"
	kafkax "github.com/sunucuics/ics-commerce-core/internal/kafka"
	"github.com/sunucuics/ics-commerce-core/internal/logging"
	"github.com/sunucuics/ics-commerce-core/internal/metrics"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/postgres"
	"github.com/sunucuics/ics-commerce-core/internal/redisx"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
	"github.com/sunucuics/ics-commerce-core/internal/webhooks"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	mtx := metrics.New("api")

	catalogRepo := &catalog.Repo{DB: db}
	cartRepo := &cart.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	ledger := &stock.Ledger{DB: db}
	calendar := &slots.Calendar{DB: db}
	anomalies := &anomaly.Store{DB: db}

	events := &orders.EventPublisher{Producer: prod, Service: cfg.ServiceName}
	coordinator := &reservation.Coordinator{
		Stock:  ledger,
		Slots:  calendar,
		Orders: orderRepo,
		Log:    log,
	}
	checkoutSvc := &checkout.Service{
		Pricer:     catalogRepo,
		Carts:      cartRepo,
		Stock:      ledger,
		Slots:      calendar,
		Releaser:   coordinator,
		Orders:     orderRepo,
		Events:     events,
		HoldWindow: cfg.HoldWindow,
		Log:        log,
	}
	dedup := &webhooks.DedupStore{DB: db, Redis: rdb}
	paymentSvc := &webhooks.PaymentService{
		Dedup:        dedup,
		Orders:       orderRepo,
		Reservations: coordinator,
		Anomalies:    anomalies,
		Events:       events,
		Log:          log,
	}
	shippingSvc := &webhooks.ShippingService{
		Dedup:     dedup,
		Orders:    orderRepo,
		Anomalies: anomalies,
		Events:    events,
		Log:       log,
	}

	router := httpx.NewRouter()

	// public catalog and provider webhooks carry no end-user identity
	(&httpx.CatalogHandler{Catalog: catalogRepo}).Register(router)
	(&httpx.WebhooksHandler{
		Payments:        paymentSvc,
		Shipping:        shippingSvc,
		Metrics:         mtx,
		PaymentProvider: cfg.PaymentProvider,
		ShipProvider:    cfg.ShippingProvider,
	}).Register(router)

	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireUser)
		(&httpx.CartHandler{Carts: cartRepo, Catalog: catalogRepo}).Register(r)
		(&httpx.CheckoutHandler{Checkout: checkoutSvc, Orders: orderRepo, Redis: rdb, Metrics: mtx}).Register(r)
		(&httpx.OrdersHandler{Orders: orderRepo, Redis: rdb}).Register(r)
		(&httpx.AppointmentsHandler{Checkout: checkoutSvc, Calendar: calendar}).Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireAdmin)
		(&httpx.AdminHandler{
			Orders:       orderRepo,
			Anomalies:    anomalies,
			Reservations: coordinator,
			Calendar:     calendar,
			Events:       events,
		}).Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
