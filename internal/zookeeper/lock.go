// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/tally_locks" // 所有分布式锁的根节点

// ErrLockTimeout 表示在等待窗口内没有等到前序节点释放。
var ErrLockTimeout = errors.New("timeout waiting for zookeeper lock")

// DistributedLock 基于临时顺序节点实现互斥。
// 对账扫描器用它做 leader 选举：同一时刻只允许一个实例扫库。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的父路径, 例如 /tally_locks/reconciler
	lockNode string // 成功抢锁后自己创建的节点
	waitMax  time.Duration
}

// NewDistributedLock 创建一个针对 resourceID 的锁实例。
func NewDistributedLock(conn *Conn, resourceID string, waitMax time.Duration) (*DistributedLock, error) {
	if err := ensureNode(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := ensureNode(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath, waitMax: waitMax}, nil
}

func ensureNode(conn *Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check node %s: %w", path, err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("failed to create node %s: %w", path, err)
	}
	return nil
}

// Lock 抢锁，抢不到则阻塞等待前序节点释放，最长等待 waitMax。
func (l *DistributedLock) Lock() error {
	// 1. 创建临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	deadline := time.Now().Add(l.waitMax)
	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to list lock children: %w", err)
		}
		sort.Strings(children)

		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			// 最小节点即持锁者
			return nil
		}

		// 只监听自己的前一个节点，避免惊群
		prevIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevIndex = i - 1
				break
			}
		}
		if prevIndex < 0 {
			return errors.New("own lock node missing from children listing")
		}
		prevNodePath := l.path + "/" + children[prevIndex]

		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			if err == zk.ErrNoNode {
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		remain := time.Until(deadline)
		if remain <= 0 {
			l.abandon()
			return ErrLockTimeout
		}
		select {
		case ev := <-eventChan:
			if ev.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(remain):
			l.abandon()
			return ErrLockTimeout
		}
	}
}

// Unlock 删除自己的节点，唤醒下一位等待者。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

// abandon 放弃排队，清掉自己的节点，防止队列里留下僵尸。
func (l *DistributedLock) abandon() {
	if l.lockNode != "" {
		_ = l.conn.Delete(l.lockNode, -1)
		l.lockNode = ""
	}
}
