// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 的 UniversalClient。
// 传入多个地址时自动工作在集群模式，单地址时是普通单机客户端。
type Client struct {
	rdb redis.UniversalClient

	scriptLock sync.RWMutex
	scripts    map[string]*redis.Script
}

// NewClient 创建客户端并做一次连通性探测。
func NewClient(addrs []string) (*Client, error) {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{
		rdb:     rdb,
		scripts: make(map[string]*redis.Script),
	}, nil
}

// GetClient 暴露底层客户端给需要完整 API 的调用方（pipeline、ZSet 等）。
func (c *Client) GetClient() redis.UniversalClient {
	return c.rdb
}

// LoadScriptFromContent 注册一段 Lua 脚本，之后可用 RunScript 按名执行。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if content == "" {
		return fmt.Errorf("script %q has empty content", name)
	}
	c.scriptLock.Lock()
	defer c.scriptLock.Unlock()
	c.scripts[name] = redis.NewScript(content)
	return nil
}

// RunScript 执行已注册的脚本。go-redis 的 Script.Run 自动走 EVALSHA 并在
// NOSCRIPT 时回退 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.scriptLock.RLock()
	script, ok := c.scripts[name]
	c.scriptLock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script %q not loaded", name)
	}
	return script.Run(ctx, c.rdb, keys, args...).Result()
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}
