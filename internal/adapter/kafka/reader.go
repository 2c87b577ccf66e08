package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/metno/netcdf-ondemand/internal/config"
	"github.com/metno/netcdf-ondemand/internal/domain"
)

// Reader consumes conversion requests from the request topic.
// It implements pipeline.Extractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the configured request topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaRequestTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, logger: logger}
}

// Extract fetches the next request message. The offset is committed through
// the request's Commit callback only after the request is fully handled.
func (r *Reader) Extract(ctx context.Context) (domain.ConversionRequest, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.ConversionRequest{}, fmt.Errorf("fetch request message: %w", err)
	}

	req, err := mapMessageToRequest(msg)
	if err != nil {
		// A malformed request cannot be retried; commit it so the consumer
		// group moves past the poison message.
		r.logger.Warn("discarding malformed request message",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		if commitErr := r.reader.CommitMessages(ctx, msg); commitErr != nil {
			r.logger.Warn("commit of malformed request failed", "error", commitErr)
		}
		return domain.ConversionRequest{}, err
	}

	req.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return req, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// requestPayload is the JSON body submitters publish to the request topic.
type requestPayload struct {
	RequestID  string   `json:"request_id,omitempty"`
	Products   []string `json:"products"`
	Recipients []string `json:"recipients,omitempty"`
}

// mapMessageToRequest converts a Kafka message into a ConversionRequest,
// assigning a request ID when the submitter did not provide one.
func mapMessageToRequest(msg kafkago.Message) (domain.ConversionRequest, error) {
	var payload requestPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return domain.ConversionRequest{}, fmt.Errorf("parse request payload: %w", err)
	}
	if len(payload.Products) == 0 {
		return domain.ConversionRequest{}, fmt.Errorf("request has no products")
	}

	id := payload.RequestID
	if id == "" {
		id = uuid.NewString()
	}

	return domain.ConversionRequest{
		ID:         id,
		Products:   payload.Products,
		Recipients: payload.Recipients,
		ReceivedAt: msg.Time,
	}, nil
}
