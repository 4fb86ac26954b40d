// internal/service/ranking/interfaces/event_consumer_test.go
package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"tally/internal/service/ranking/application"
	"tally/internal/service/ranking/domain"
	"tally/internal/service/ranking/rankingtest"
)

// scriptedReader 按脚本投递消息, 队列耗尽后阻塞到 ctx 取消,
// 并记录提交过的 offset。
type scriptedReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Config() kafka.ReaderConfig { return kafka.ReaderConfig{Topic: "product-events"} }
func (r *scriptedReader) Close() error               { return nil }

func (r *scriptedReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.committed))
	copy(out, r.committed)
	return out
}

func viewMessage(t *testing.T, offset int64, productID int64) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(domain.ProductEvent{
		EventID:    fmt.Sprintf("evt-%d", offset),
		Type:       domain.EventTypeView,
		ProductID:  productID,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: payload}
}

// 批次落账失败时不能跳过去拉后面的消息: 提交靠后的 offset 会
// 隐式确认之前的 offset, 被跳过的批次就永久丢了。这里让前两次
// 事务失败, 验证批次原地重试到成功、offset 按序提交且精确入账一次。
func TestEventConsumer_RetriesFailedBatchInPlace(t *testing.T) {
	store := rankingtest.NewStore()
	live := rankingtest.NewLive()
	tracer := otel.Tracer("ranking-test")
	agg := application.NewAggregator(store, live, domain.DefaultWeights(), tracer)
	proc := application.NewEventProcessor(store, agg, "ranking-worker", tracer)

	reader := &scriptedReader{queue: []kafka.Message{
		viewMessage(t, 0, 42),
		viewMessage(t, 1, 42),
		viewMessage(t, 2, 7),
	}}
	store.FailTransacts(2)

	consumer := NewEventConsumer(reader, proc, nil, 1, 50*time.Millisecond)
	consumer.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	require.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 3
	}, 5*time.Second, 5*time.Millisecond, "all offsets should be committed despite transient failures")
	cancel()
	consumer.Stop()

	assert.Equal(t, []int64{0, 1, 2}, reader.committedOffsets())

	rows, err := store.Metrics().FindByIDs(context.Background(), []int64{42, 7})
	require.NoError(t, err)
	require.NotNil(t, rows[42])
	require.NotNil(t, rows[7])
	assert.Equal(t, int64(2), rows[42].ViewCount)
	assert.Equal(t, int64(1), rows[7].ViewCount)
}
