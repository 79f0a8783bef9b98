package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mockKafka(t *testing.T) (*Kafka, *mocks.SyncProducer) {
	t.Helper()
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	mp := mocks.NewSyncProducer(t, sc)
	return &Kafka{log: discard(), topic: "dengue.snapshots", producer: mp}, mp
}

func TestNewKafka_Validation(t *testing.T) {
	if _, err := NewKafka(nil, KafkaConfig{Topic: "t"}); err == nil {
		t.Fatal("expected error for missing brokers")
	}
	if _, err := NewKafka(nil, KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func TestPublish(t *testing.T) {
	k, mp := mockKafka(t)

	ev := Event{
		Generation: 12,
		FetchedAt:  time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
		Clusters:   3,
		TotalCases: 17,
		Added:      []string{"gh:abc"},
	}

	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "12" {
			t.Errorf("key = %q, want the generation", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var got Event
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got.Generation != 12 || got.Clusters != 3 || len(got.Added) != 1 {
			t.Errorf("event = %+v", got)
		}
		return nil
	})

	if err := k.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := k.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublish_SendFailure(t *testing.T) {
	k, mp := mockKafka(t)
	mp.ExpectSendMessageAndFail(sarama.ErrBrokerNotAvailable)

	if err := k.Publish(context.Background(), Event{Generation: 1}); err == nil {
		t.Fatal("expected send failure to surface")
	}
	_ = k.Close()
}

func TestPublish_CanceledContext(t *testing.T) {
	k, _ := mockKafka(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := k.Publish(ctx, Event{Generation: 1}); err == nil {
		t.Fatal("expected error for a canceled context")
	}
	_ = k.Close()
}

func TestNoop(t *testing.T) {
	var n Noop
	if err := n.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("Noop.Publish: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Noop.Close: %v", err)
	}
}
