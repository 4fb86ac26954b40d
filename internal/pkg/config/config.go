// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个结算平台的静态配置根。
// 配置优先级: 环境变量 > YAML 文件 > 默认值。
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Infra      InfraConfig      `yaml:"infra"`
	Settlement SettlementConfig `yaml:"settlement"`
	Ranking    RankingConfig    `yaml:"ranking"`
}

type ServiceConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"` // 逗号分隔, 单节点或集群
}

type KafkaConfig struct {
	Brokers              string `yaml:"brokers"` // 逗号分隔
	OrderRequestTopic    string `yaml:"orderRequestTopic"`
	OrderEventTopic      string `yaml:"orderEventTopic"`
	PaymentResultTopic   string `yaml:"paymentResultTopic"`
	ProductEventTopic    string `yaml:"productEventTopic"`
	DeadLetterTopic      string `yaml:"deadLetterTopic"`
	SettlementGroup      string `yaml:"settlementGroup"`
	CompensationGroup    string `yaml:"compensationGroup"`
	MetricsConsumerGroup string `yaml:"metricsConsumerGroup"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

type ZookeeperConfig struct {
	Addrs string `yaml:"addrs"`
}

// SettlementConfig 控制订单结算与补偿的行为。
type SettlementConfig struct {
	RetryAttempts     int           `yaml:"retryAttempts"`     // 乐观重试次数上限
	RetryBackoff      time.Duration `yaml:"retryBackoff"`      // 每次重试之间的退避
	PendingTimeout    time.Duration `yaml:"pendingTimeout"`    // 对账扫描的 PENDING 超时阈值
	SweepInterval     time.Duration `yaml:"sweepInterval"`     // 对账扫描周期
	OutboxInterval    time.Duration `yaml:"outboxInterval"`    // outbox 派发轮询周期
	PaymentGatewayURL string        `yaml:"paymentGatewayURL"` // 支付网关基地址
	ProcessingTimeout time.Duration `yaml:"processingTimeout"` // 单笔订单处理超时
}

// RankingConfig 控制榜单的打分权重与快照行为。
type RankingConfig struct {
	ViewWeight       float64       `yaml:"viewWeight"`
	LikeWeight       float64       `yaml:"likeWeight"`
	OrderWeight      float64       `yaml:"orderWeight"`
	SnapshotTopN     int           `yaml:"snapshotTopN"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	BatchSize        int           `yaml:"batchSize"`
	BatchFlush       time.Duration `yaml:"batchFlush"`
	FeedInterval     time.Duration `yaml:"feedInterval"`
	FeedPageSize     int           `yaml:"feedPageSize"`
}

var (
	current *Config
	mu      sync.RWMutex
)

// Load 读取 YAML 配置文件并应用环境变量覆盖。path 为空时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Get 返回最近一次 Load 的配置。必须先调用 Load。
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		panic("config.Get called before config.Load")
	}
	return current
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "tally",
			Port:     8080,
			LogLevel: "info",
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "root",
				Database: "tally",
			},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Kafka:     defaultKafka(),
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:     NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Addrs: "localhost:2181"},
		},
		Settlement: SettlementConfig{
			RetryAttempts:     10,
			RetryBackoff:      100 * time.Millisecond,
			PendingTimeout:    5 * time.Minute,
			SweepInterval:     time.Minute,
			OutboxInterval:    time.Second,
			PaymentGatewayURL: "http://localhost:9900",
			ProcessingTimeout: 30 * time.Second,
		},
		Ranking: RankingConfig{
			ViewWeight:       0.1,
			LikeWeight:       0.2,
			OrderWeight:      0.6,
			SnapshotTopN:     100,
			SnapshotInterval: time.Hour,
			BatchSize:        100,
			BatchFlush:       time.Second,
			FeedInterval:     5 * time.Second,
			FeedPageSize:     10,
		},
	}
}

func defaultKafka() KafkaConfig {
	return KafkaConfig{
		Brokers:              "localhost:9092",
		OrderRequestTopic:    "order.requested",
		OrderEventTopic:      "order.events",
		PaymentResultTopic:   "payment.results",
		ProductEventTopic:    "product.events",
		DeadLetterTopic:      "settlement.dlq",
		SettlementGroup:      "settlement-service",
		CompensationGroup:    "compensation-pipeline",
		MetricsConsumerGroup: "product-metrics",
	}
}

// applyEnvOverrides 让部署环境无需挂载配置文件即可覆盖关键连接参数。
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Infra.MySQL.Host, "MYSQL_HOST")
	setStr(&cfg.Infra.MySQL.User, "MYSQL_USER")
	setStr(&cfg.Infra.MySQL.Password, "MYSQL_PASSWORD")
	setStr(&cfg.Infra.MySQL.Database, "MYSQL_DATABASE")
	setStr(&cfg.Infra.Redis.Addrs, "REDIS_ADDRS")
	setStr(&cfg.Infra.Kafka.Brokers, "KAFKA_BROKERS")
	setStr(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	setStr(&cfg.Infra.Nacos.Addrs, "NACOS_SERVER_ADDRS")
	setStr(&cfg.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	setStr(&cfg.Infra.Nacos.Group, "NACOS_GROUP")
	setStr(&cfg.Infra.Zookeeper.Addrs, "ZK_ADDRS")
	setStr(&cfg.Settlement.PaymentGatewayURL, "PAYMENT_GATEWAY_URL")
	setStr(&cfg.Service.LogLevel, "LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// KafkaBrokerList 把逗号分隔的 broker 配置拆成 slice。
func (c KafkaConfig) BrokerList() []string {
	return strings.Split(c.Brokers, ",")
}

// RedisAddrList 把逗号分隔的 redis 地址拆成 slice。
func (c RedisConfig) AddrList() []string {
	return strings.Split(c.Addrs, ",")
}
