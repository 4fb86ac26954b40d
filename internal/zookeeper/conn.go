// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"

	"tally/internal/pkg/logger"
)

// Conn 是对 zk.Conn 的薄封装，统一超时与日志。
type Conn struct {
	*zk.Conn
}

// Connect 建立 ZooKeeper 会话。session 超时决定了持锁进程崩溃后
// 临时节点多久被清除，也就是锁的最长孤儿时间。
func Connect(addrs []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, events, err := zk.Connect(addrs, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, err
	}

	// 连接状态变化只做日志，不中断业务；会话过期由锁的使用方感知
	go func() {
		for ev := range events {
			if ev.State == zk.StateExpired || ev.State == zk.StateDisconnected {
				logger.L().Warn().Str("state", ev.State.String()).Msg("zookeeper session state changed")
			}
		}
	}()

	return &Conn{Conn: conn}, nil
}
