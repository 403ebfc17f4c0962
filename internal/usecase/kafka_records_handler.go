package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	pkgkafka "FuturesHist/pkg/kafka"
)

// KafkaRecordsHandler consumes published series records and writes them to storage.
type KafkaRecordsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaRecordsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaRecordsHandler {
	return &KafkaRecordsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaRecordsHandler) Topic() string { return h.topic }

func (h *KafkaRecordsHandler) Handle(ctx context.Context, _ []byte, value []byte) error {
	var rec models.SeriesRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	err := h.storage.StoreBatch(ctx, []models.SeriesRecord{rec})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordRecords("clickhouse", string(rec.Series), 1)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRecordsHandler)(nil)
