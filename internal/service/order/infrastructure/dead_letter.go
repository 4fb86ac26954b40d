// internal/service/order/infrastructure/dead_letter.go
package infrastructure

import (
	"context"

	"github.com/segmentio/kafka-go"

	"tally/internal/pkg/mq"
)

// KafkaDeadLetterSink 把无法处理的消息发到死信 topic, 供人工排查与重放。
type KafkaDeadLetterSink struct {
	writer *kafka.Writer
}

func NewKafkaDeadLetterSink(writer *kafka.Writer) *KafkaDeadLetterSink {
	return &KafkaDeadLetterSink{writer: writer}
}

func (s *KafkaDeadLetterSink) Publish(ctx context.Context, reason string, payload []byte) error {
	return mq.ProduceMessage(ctx, s.writer, []byte(reason), payload)
}
