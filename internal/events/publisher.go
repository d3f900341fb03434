// Package events mirrors system log entries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"saska-advisor-go/internal/models"
)

const DefaultTopic = "saska.system-logs"

type Publisher interface {
	Publish(ctx context.Context, entry models.SystemLog) error
	Close() error
}

// Event is the message value written to the topic.
type Event struct {
	EventType string           `json:"event_type"`
	Data      models.SystemLog `json:"data"`
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	return config
}

// NewKafkaPublisher connects to the brokers, retrying a few times while they
// come up.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(brokers, producerConfig())
		if err == nil {
			log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka producer connected")
			return NewKafkaPublisherWithProducer(producer, topic), nil
		}
		log.Warn().Err(err).Int("attempt", i).Msg("connect kafka")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect kafka after 5 attempts: %w", err)
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entry models.SystemLog) error {
	value, err := json.Marshal(Event{EventType: "system_log." + string(entry.Type), Data: entry})
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Value:     sarama.ByteEncoder(value),
		Timestamp: entry.Timestamp,
	}
	if entry.UserID != "" {
		msg.Key = sarama.StringEncoder(entry.UserID)
	}
	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, models.SystemLog) error { return nil }
func (Noop) Close() error                                    { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = Noop{}
)
