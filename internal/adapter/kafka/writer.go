package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/metno/netcdf-ondemand/internal/config"
	"github.com/metno/netcdf-ondemand/internal/domain"
)

// Writer publishes finished reports to the report topic, where a downstream
// mailer turns them into notifications. It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes and publishes a report.
func (w *Writer) Load(ctx context.Context, rep domain.Report) error {
	msg, err := serializeToMessage(rep)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Report into a Kafka message.
func serializeToMessage(rep domain.Report) (kafkago.Message, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rep.RequestID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "subject", Value: []byte(rep.Subject)},
			{Key: "generated_at", Value: []byte(rep.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
