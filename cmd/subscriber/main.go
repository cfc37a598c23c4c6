// Command subscriber follows refresh notices published by the api and logs
// a summary of every mirrored snapshot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/token-aggregator/internal/cache"
	"github.com/aman-zulfiqar/token-aggregator/internal/config"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	sub, err := cache.NewRefreshSubscriber(client, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create subscriber")
	}

	err = sub.Subscribe(ctx, func(n cache.RefreshNotice) {
		log := logger.WithFields(logrus.Fields{
			"refresh_id": n.RefreshID,
			"built_at":   n.BuiltAt,
			"records":    n.Records,
		})

		snap, err := cache.ReadSnapshot(ctx, client)
		if err != nil {
			log.WithError(err).Warn("refresh announced but snapshot unreadable")
			return
		}
		log.WithFields(logrus.Fields{
			"priced": n.SourceCounts[models.AttributionPricePrimary] + n.SourceCounts[models.AttributionPriceFallback] + n.SourceCounts[models.AttributionBoth],
			"top":    topByActivity(snap.Records),
		}).Info("snapshot refreshed")
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("subscription failed")
	}
	logger.Info("subscriber stopped")
}

// topByActivity returns the address with the most combined buys and sells.
func topByActivity(recs []models.TokenRecord) string {
	var (
		best  string
		count int64 = -1
	)
	for _, r := range recs {
		if n := r.Info.Buys + r.Info.Sells; n > count {
			best, count = r.Address, n
		}
	}
	return best
}
