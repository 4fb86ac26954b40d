// cmd/settlement-service/main.go
package main

import (
	"context"
	"flag"
	"log"

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
	"tally/internal/service/order/interfaces"
	promoapp "tally/internal/service/promotion/application"
	promoinfra "tally/internal/service/promotion/infrastructure"
	"tally/internal/service/promotion/infrastructure/rule"
)

const serviceName = "settlement-service"

// main 是组装根: 创建依赖, 装配下单编排与补偿流水线, 交给 bootstrap 托管。
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

	tracer := otel.Tracer(serviceName)
	runner := txn.NewRunner(cfg.Settlement.RetryAttempts, cfg.Settlement.RetryBackoff)

	ledgerStore := ledgerinfra.NewGormStore(db)
	ledgerSvc := ledgerapp.NewService(ledgerStore, runner, tracer)

	engine, err := rule.NewCELEngineAdapter()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to build rule engine")
	}
	promoSvc := promoapp.NewService(promoinfra.NewGormTemplateRepository(db), engine, tracer)

	settlementStore := orderinfra.NewGormSettlementStore(db)
	gateway := orderinfra.NewHTTPPaymentGateway(httpclient.NewClient(tracer), cfg.Settlement.PaymentGatewayURL)

	brokers := cfg.Infra.Kafka.BrokerList()
	dlqWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.DeadLetterTopic)
	eventWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.OrderEventTopic)
	dlq := orderinfra.NewKafkaDeadLetterSink(dlqWriter)

	orchestrator := orderapp.NewOrchestrator(settlementStore, ledgerSvc, promoSvc, gateway, runner, tracer, cfg.Settlement.ProcessingTimeout)
	pipeline := orderapp.NewCompensationPipeline(settlementStore, ledgerSvc, dlq, tracer)
	dispatcher := orderinfra.NewOutboxDispatcher(settlementStore.Outbox(), eventWriter, cfg.Settlement.OutboxInterval)

	orderReader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.OrderRequestTopic, cfg.Infra.Kafka.SettlementGroup)
	paymentReader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.PaymentResultTopic, cfg.Infra.Kafka.CompensationGroup)
	orderConsumer := interfaces.NewOrderConsumer(orderReader, orchestrator, dlq)
	paymentConsumer := interfaces.NewPaymentResultConsumer(paymentReader, pipeline, dlq)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Service.Port,
		Run: func(ctx context.Context) error {
			orderConsumer.Start(ctx)
			paymentConsumer.Start(ctx)
			return dispatcher.Run(ctx)
		},
		Cleanup: []func(){
			func() { orderConsumer.Stop() },
			func() { paymentConsumer.Stop() },
			func() { dlqWriter.Close() },
			func() { eventWriter.Close() },
		},
	})
}
