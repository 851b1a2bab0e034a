package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cityops-feeds-service/internal/config"
	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SnapshotPublisher writes every published snapshot to a Kafka topic, one
// message per feed keyed by feed ID. It implements aggregator.Publisher.
type SnapshotPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewSnapshotPublisher creates a Kafka producer for the configured snapshot topic.
func NewSnapshotPublisher(cfg *config.Config, logger *slog.Logger) *SnapshotPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &SnapshotPublisher{writer: w, logger: logger}
}

// FeedMessage is the JSON value of one published feed result.
type FeedMessage struct {
	Feed        domain.FeedID   `json:"feed"`
	Shape       domain.Shape    `json:"shape"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Stage       int             `json:"stage"`
	RecordCount int             `json:"record_count"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	Records     []domain.Record `json:"records"`
}

// PublishSnapshot serializes each feed result of snap and writes them in a
// single WriteMessages call.
func (p *SnapshotPublisher) PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	feeds := snap.Feeds()
	if len(feeds) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(feeds))
	for _, id := range feeds {
		res, _ := snap.Result(id)
		msg, err := serializeToMessage(snap, res)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	p.logger.Debug("snapshot published", "messages", len(msgs))
	return nil
}

func (p *SnapshotPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals one FeedResult into a Kafka message.
func serializeToMessage(snap *domain.Snapshot, res domain.FeedResult) (kafkago.Message, error) {
	value := FeedMessage{
		Feed:        res.Feed,
		Shape:       res.Shape,
		FetchedAt:   snap.FetchedAt().UTC(),
		Stage:       snap.Stage(),
		RecordCount: len(res.Records),
		Records:     res.Records,
	}
	if value.Records == nil {
		value.Records = []domain.Record{}
	}
	headers := []kafkago.Header{
		{Key: "feed", Value: []byte(res.Feed)},
		{Key: "fetched_at", Value: []byte(value.FetchedAt.Format(time.RFC3339))},
	}
	if res.Err != nil {
		value.ErrorKind = domain.KindOf(res.Err).String()
		value.Error = res.Err.Error()
		headers = append(headers, kafkago.Header{Key: "error_kind", Value: []byte(value.ErrorKind)})
	}

	data, err := json.Marshal(value)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize feed %s: %w", res.Feed, err)
	}
	return kafkago.Message{
		Key:     []byte(res.Feed),
		Value:   data,
		Headers: headers,
	}, nil
}
