package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Kafka 将消息写入 Kafka topic，供下游系统消费。
type Kafka struct {
	topic  string
	writer *kafka.Writer
	now    func() time.Time
}

// kafkaPayload 写入 Kafka 的消息体。
type kafkaPayload struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// NewKafka 创建 Kafka 推送目标。
func NewKafka(brokers []string, topic string, timeout time.Duration) *Kafka {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false, // 同步写入，失败需要上报
		WriteTimeout: timeout,
		ReadTimeout:  timeout,
	}
	logger.Debugf("[notify] Kafka writer 已创建 brokers=%v topic=%s", brokers, topic)
	return &Kafka{topic: topic, writer: writer, now: time.Now}
}

// Name 返回目标名称。
func (k *Kafka) Name() string { return "kafka:" + k.topic }

func (k *Kafka) message(text string) (kafka.Message, error) {
	sentAt := k.now().UTC()
	value, err := json.Marshal(kafkaPayload{Text: text, SentAt: sentAt})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Value: value, Time: sentAt}, nil
}

// Send 写入一条消息。
func (k *Kafka) Send(ctx context.Context, text string) error {
	msg, err := k.message(text)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return failure.New(failure.Delivery, "", fmt.Errorf("%s: 写入失败: %w", k.Name(), err))
	}
	return nil
}

// Close 关闭 writer。
func (k *Kafka) Close() error {
	return k.writer.Close()
}
