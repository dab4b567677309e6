package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type KafkaNotifier struct {
	topic    string
	producer sarama.SyncProducer
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create sarama sync producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(prod, topic), nil
}

func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{topic: topic, producer: producer}
}

func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}

// Notify keys messages by pairing so one client's commands stay ordered
// within a partition.
func (k *KafkaNotifier) Notify(ctx context.Context, n CommandAvailable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal command notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(n.PairingID),
		Value:     sarama.ByteEncoder(b),
		Timestamp: n.CreatedAt,
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send kafka message: %w", err)
	}
	return nil
}
