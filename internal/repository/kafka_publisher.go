package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	pkgkafka "FuturesHist/pkg/kafka"
)

type batchWriter interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher implements Publisher. One message per record, keyed by
// symbol/period/series so a series stays on one partition.
type KafkaPublisher struct {
	producer batchWriter
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, records []models.SeriesRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs, err := recordMessages(records)
	if err != nil {
		return err
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// RecordKey is the partition key of a record.
func RecordKey(r models.SeriesRecord) []byte {
	return []byte(r.Symbol + "/" + r.Period + "/" + string(r.Series))
}

func recordMessages(records []models.SeriesRecord) ([]pkgkafka.Message, error) {
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode %s record: %w", r.Series, err)
		}
		msgs[i] = pkgkafka.Message{Key: RecordKey(r), Value: value}
	}
	return msgs, nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
