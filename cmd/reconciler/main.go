// cmd/reconciler/main.go
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
	"tally/internal/pkg/httpclient"
	"tally/internal/pkg/logger"
	"tally/internal/pkg/mq"
	ledgerapp "tally/internal/service/ledger/application"
	ledgerinfra "tally/internal/service/ledger/infrastructure"
	"tally/internal/service/ledger/txn"
	orderapp "tally/internal/service/order/application"
	orderinfra "tally/internal/service/order/infrastructure"
	"tally/internal/zookeeper"
)

const (
	serviceName  = "reconciler"
	lockResource = "reconciler"
	lockWaitMax  = 30 * time.Second
)

// main 装配对账扫描器。多实例部署时通过 zookeeper 锁选主,
// 同一时刻只有一个实例扫 PENDING 订单。
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
	zkConn, err := zookeeper.Connect([]string{cfg.Infra.Zookeeper.Addrs}, 10*time.Second)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect zookeeper")
	}

	tracer := otel.Tracer(serviceName)
	runner := txn.NewRunner(cfg.Settlement.RetryAttempts, cfg.Settlement.RetryBackoff)
	ledgerSvc := ledgerapp.NewService(ledgerinfra.NewGormStore(db), runner, tracer)
	store := orderinfra.NewGormSettlementStore(db)
	gateway := orderinfra.NewHTTPPaymentGateway(httpclient.NewClient(tracer), cfg.Settlement.PaymentGatewayURL)

	dlqWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.BrokerList(), cfg.Infra.Kafka.DeadLetterTopic)
	pipeline := orderapp.NewCompensationPipeline(store, ledgerSvc, orderinfra.NewKafkaDeadLetterSink(dlqWriter), tracer)
	reconciler := orderapp.NewReconciler(store, gateway, pipeline, tracer, cfg.Settlement.PendingTimeout)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Service.Port,
		Run: func(ctx context.Context) error {
			return runElected(ctx, zkConn, reconciler, cfg.Settlement.SweepInterval)
		},
		Cleanup: []func(){
			func() { dlqWriter.Close() },
			func() { zkConn.Close() },
		},
	})
}

// runElected 先抢锁再扫库。抢锁超时就重新排队;
// 持锁实例退出或崩溃后, 临时节点消失, 等待者自动接班。
func runElected(ctx context.Context, conn *zookeeper.Conn, reconciler *orderapp.Reconciler, interval time.Duration) error {
	lock, err := zookeeper.NewDistributedLock(conn, lockResource, lockWaitMax)
	if err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := lock.Lock(); err != nil {
			if err == zookeeper.ErrLockTimeout {
				continue
			}
			return err
		}
		logger.L().Info().Msg("reconciler elected leader 👑")

		err := reconciler.Run(ctx, interval)
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.L().Error().Err(unlockErr).Msg("failed to release reconciler lock")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.L().Warn().Err(err).Msg("reconciler loop exited, re-entering election")
	}
}
