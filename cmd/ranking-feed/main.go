// cmd/ranking-feed/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"tally/internal/pkg/bootstrap"
	"tally/internal/pkg/config"
	"tally/internal/pkg/database"
	"tally/internal/pkg/logger"
	"tally/internal/pkg/redis"
	"tally/internal/service/ranking/application"
	"tally/internal/service/ranking/domain"
	"tally/internal/service/ranking/infrastructure"
)

const serviceName = "ranking-feed"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedPayload 是推给前端的一帧榜单。
type feedPayload struct {
	Period    string                `json:"period"`
	PeriodKey string                `json:"period_key"`
	Entries   []domain.RankingEntry `json:"entries"`
	At        time.Time             `json:"at"`
}

// client 是一个 websocket 订阅者。
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 只消费心跳, 连接断开时触发注销。
func (c *client) readPump(hub *hub) {
	defer func() {
		hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// hub 维护全部活跃连接并向它们广播榜单帧。
type hub struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	lock       sync.RWMutex
}

func newHub() *hub {
	return &hub{
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.lock.Lock()
			h.clients[c.id] = c
			h.lock.Unlock()
			logger.L().Info().Str("client", c.id).Msg("feed subscriber connected")
		case c := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.lock.Unlock()
			logger.L().Info().Str("client", c.id).Msg("feed subscriber disconnected")
		case msg := <-h.broadcast:
			h.lock.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 写不过来的慢订阅者丢帧, 榜单帧本身是全量的
				}
			}
			h.lock.RUnlock()
		}
	}
}

func serveWs(h *hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{id: uuid.New().String()[:8], conn: conn, send: make(chan []byte, 16)}
	h.register <- c
	go c.writePump()
	go c.readPump(h)
}

// main 装配榜单推送网关: 周期拉取当前日榜第一页并广播给所有订阅者。
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
	weights := domain.Weights{
		View:  cfg.Ranking.ViewWeight,
		Like:  cfg.Ranking.LikeWeight,
		Order: cfg.Ranking.OrderWeight,
	}
	agg := application.NewAggregator(
		infrastructure.NewGormStore(db),
		infrastructure.NewRedisLiveStore(redisClient),
		weights, tracer,
	)

	h := newHub()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Service.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(h, w, r)
			})
		},
		Run: func(ctx context.Context) error {
			go h.run(ctx)
			return feedLoop(ctx, h, agg, cfg.Ranking.FeedInterval, cfg.Ranking.FeedPageSize)
		},
		Cleanup: []func(){
			func() { redisClient.Close() },
		},
	})
}

// feedLoop 定时取日榜首页, 编码后交给 hub 广播。
func feedLoop(ctx context.Context, h *hub, agg *application.Aggregator, interval time.Duration, pageSize int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			entries, err := agg.GetPage(ctx, domain.PeriodDaily, now, 1, pageSize)
			if err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to load ranking page")
				continue
			}
			payload, err := json.Marshal(feedPayload{
				Period:    string(domain.PeriodDaily),
				PeriodKey: domain.PeriodDaily.Key(now),
				Entries:   entries,
				At:        now,
			})
			if err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to encode ranking frame")
				continue
			}
			h.broadcast <- payload
		}
	}
}
