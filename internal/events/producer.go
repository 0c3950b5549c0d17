package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"StorefrontAPI/internal/model"

	"github.com/IBM/sarama"
)

const DefaultTopic = "payment.events"

// Producer publishes payment events to Kafka, keyed by sell id so that all
// events of one order land on the same partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// NewProducer dials the brokers with acks from all in-sync replicas.
func NewProducer(brokers []string, topic string, log *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewProducerFrom(producer, topic, log), nil
}

// NewProducerFrom wraps an existing SyncProducer.
func NewProducerFrom(p sarama.SyncProducer, topic string, log *slog.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{producer: p, topic: topic, log: log}
}

func (p *Producer) PublishPaymentEvent(_ context.Context, evt model.PaymentEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.EventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(evt.Data.SellID, 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(evt.EventType)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s event: %w", evt.EventType, err)
	}

	p.log.Debug("published payment event",
		"event", evt.EventType, "sell_id", evt.Data.SellID, "partition", partition, "offset", offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// LogNotifier writes events to the log when no broker is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) PublishPaymentEvent(_ context.Context, evt model.PaymentEvent) error {
	n.Log.Info("payment event",
		"event", evt.EventType,
		"transaction_id", evt.Data.TransactionID,
		"sell_id", evt.Data.SellID,
		"provider", evt.Data.Provider,
		"status", evt.Data.Status,
		"sell_status", evt.Data.SellStatus.String())
	return nil
}
