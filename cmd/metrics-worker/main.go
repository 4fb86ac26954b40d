// cmd/metrics-worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.opentelemetry.io/otel"

	"tally/internal/pkg/bootstrap"
	"tally/internal/pkg/config"
	"tally/internal/pkg/database"
	"tally/internal/pkg/logger"
	"tally/internal/pkg/mq"
	"tally/internal/pkg/redis"
	orderinfra "tally/internal/service/order/infrastructure"
	"tally/internal/service/ranking/application"
	"tally/internal/service/ranking/domain"
	"tally/internal/service/ranking/infrastructure"
	"tally/internal/service/ranking/interfaces"
)

const serviceName = "metrics-worker"

// main 装配商品指标流水线: kafka 批量消费 -> 幂等处理 -> 周期快照。
func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(serviceName, cfg.Service.LogLevel)

	db, err := database.Open(cfg.Infra.MySQL)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to open mysql")
	}
	redisClient, err := redis.NewClient(cfg.Infra.Redis.AddrList())
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect redis")
	}

	tracer := otel.Tracer(serviceName)
	store := infrastructure.NewGormStore(db)
	live := infrastructure.NewRedisLiveStore(redisClient)
	weights := domain.Weights{
		View:  cfg.Ranking.ViewWeight,
		Like:  cfg.Ranking.LikeWeight,
		Order: cfg.Ranking.OrderWeight,
	}
	agg := application.NewAggregator(store, live, weights, tracer)
	processor := application.NewEventProcessor(store, agg, cfg.Infra.Kafka.MetricsConsumerGroup, tracer)

	brokers := cfg.Infra.Kafka.BrokerList()
	dlqWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.DeadLetterTopic)
	reader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.ProductEventTopic, cfg.Infra.Kafka.MetricsConsumerGroup)
	consumer := interfaces.NewEventConsumer(
		reader, processor,
		orderinfra.NewKafkaDeadLetterSink(dlqWriter),
		cfg.Ranking.BatchSize, cfg.Ranking.BatchFlush,
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Service.Port,
		Run: func(ctx context.Context) error {
			consumer.Start(ctx)
			return runSnapshots(ctx, agg, cfg.Ranking.SnapshotInterval, cfg.Ranking.SnapshotTopN)
		},
		Cleanup: []func(){
			func() { consumer.Stop() },
			func() { dlqWriter.Close() },
			func() { redisClient.Close() },
		},
	})
}

// runSnapshots 周期性把各粒度榜单的 top-N 固化到数据库。
func runSnapshots(ctx context.Context, agg *application.Aggregator, interval time.Duration, topN int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			for _, p := range domain.AllPeriods() {
				if err := agg.Snapshot(ctx, p, now, topN); err != nil {
					logger.Ctx(ctx).Error().Err(err).Str("period", string(p)).Msg("snapshot failed")
				}
			}
		}
	}
}
