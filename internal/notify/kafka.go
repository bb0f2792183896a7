package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaObserver publishes every event as JSON to a topic, keyed by event kind.
type KafkaObserver struct {
	writer messageWriter
}

func NewKafkaObserver(brokers []string, topic string) *KafkaObserver {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaObserver{writer: w}
}

func (k *KafkaObserver) Name() string { return "kafka" }

func (k *KafkaObserver) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.Kind), Value: b})
}

func (k *KafkaObserver) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
