package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka publishes events with a synchronous producer. Snapshot updates are
// rare (one per poll at most), so sync semantics cost nothing and keep
// failures observable at the call site.
type Kafka struct {
	log      *slog.Logger
	topic    string
	producer sarama.SyncProducer
}

func NewKafka(log *slog.Logger, cfg KafkaConfig) (*Kafka, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier: no brokers")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka notifier: no topic")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka notifier: producer: %w", err)
	}
	return &Kafka{log: log, topic: cfg.Topic, producer: producer}, nil
}

func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka notifier: encode event: %w", err)
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(ev.Generation, 10)),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("kafka notifier: send: %w", err)
	}
	k.log.DebugContext(ctx, "snapshot event published",
		"topic", k.topic, "partition", partition, "offset", offset, "generation", ev.Generation)
	return nil
}

func (k *Kafka) Close() error {
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("kafka notifier: close: %w", err)
	}
	return nil
}
