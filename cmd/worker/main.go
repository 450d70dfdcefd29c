package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/config"
	kafkax "github.com/sunucuics/ics-commerce-core/internal/kafka"
	"github.com/sunucuics/ics-commerce-core/internal/logging"
	"github.com/sunucuics/ics-commerce-core/internal/metrics"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/postgres"
	"github.com/sunucuics/ics-commerce-core/internal/redisx"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

const sweepBatch = 200

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName + "-worker")
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

	mtx := metrics.New("worker")
	go func() {
		addr := getenv("WORKER_METRICS_ADDR", ":9091")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.Info("metrics listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics listener", zap.Error(err))
		}
	}()

	orderRepo := &orders.Repo{DB: db}
	coordinator := &reservation.Coordinator{
		Stock:  &stock.Ledger{DB: db},
		Slots:  &slots.Calendar{DB: db},
		Orders: orderRepo,
		Log:    log,
	}
	events := &orders.EventPublisher{Producer: prod, Service: cfg.ServiceName + "-worker"}

	// hold-window sweeper
	go func() {
		tick := time.NewTicker(cfg.SweepInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				released, err := coordinator.Sweep(ctx, now.UTC(), sweepBatch)
				if err != nil {
					log.Error("sweep failed", zap.Error(err))
				}
				for _, orderID := range released {
					mtx.ReservationsSwept.Inc()
					events.ReservationReleased(orderID, reservation.ReasonHoldExpired)
					// stale cached status would claim the hold still exists
					_ = rdb.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
				}
				if len(released) > 0 {
					log.Info("expired holds released", zap.Int("count", len(released)))
				}
			}
		}
	}()

	// cache warmer: every order lifecycle event refreshes the status
	// cache so GET /orders/{id} rarely touches the database
	group := getenv("WORKER_GROUP", "commerce-worker")
	workers := mustAtoi(os.Getenv("WORKER_CONCURRENCY"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, []string{
		orders.TopicOrderCreated,
		orders.TopicPaymentUpdated,
		orders.TopicFulfillmentUpdated,
		orders.TopicReservationReleased,
	}, workers, log)

	warm := func(ctx context.Context, m kafkago.Message) error {
		var env orders.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Warn("bad envelope, skipping", zap.String("topic", m.Topic), zap.Error(err))
			return nil
		}
		o, err := orderRepo.Get(ctx, env.CorrelationID)
		if err != nil {
			// order may be gone or not visible yet; drop the stale entry
			_ = rdb.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, env.CorrelationID)).Err()
			return nil
		}
		b, err := json.Marshal(o)
		if err != nil {
			return nil
		}
		return rdb.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, o.ID), b, redisx.TTLStatusCache).Err()
	}

	go func() {
		log.Info("cache warmer started", zap.String("group", group), zap.Int("workers", workers))
		if err := cons.Start(ctx, warm); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down worker")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
