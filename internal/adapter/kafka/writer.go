package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes one message per station-year exceedance cell to a Kafka
// topic. It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// ExceedanceMessage is the JSON value of a report message. Exceeded is null
// when the station had no daily mean that year.
type ExceedanceMessage struct {
	RunID       string    `json:"run_id"`
	City        string    `json:"city"`
	Station     string    `json:"station"`
	Year        int       `json:"year"`
	Exceeded    *int      `json:"exceeded"`
	Observed    int       `json:"observed"`
	Threshold   float64   `json:"threshold"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Load serializes every exceedance cell of the run and publishes them in a
// single WriteMessages call.
func (w *Writer) Load(ctx context.Context, run *domain.Run) (int, error) {
	msgs, err := runMessages(run)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish exceedances: %w", err)
	}
	w.logger.Info("exceedances published", "run_id", run.ID, "messages", len(msgs))
	return len(msgs), nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func runMessages(run *domain.Run) ([]kafkago.Message, error) {
	ex := run.Report.Exceedances
	if ex == nil {
		return nil, nil
	}
	msgs := make([]kafkago.Message, 0, len(ex.Stations)*len(ex.Years))
	var err error
	ex.Each(func(key domain.ColumnKey, year int, cell domain.Exceedance) {
		if err != nil {
			return
		}
		m := ExceedanceMessage{
			RunID:       run.ID,
			City:        key.City,
			Station:     key.Station,
			Year:        year,
			Observed:    cell.Observed,
			Threshold:   ex.Threshold,
			GeneratedAt: run.GeneratedAt,
		}
		if cell.Valid() {
			n := cell.Exceeded
			m.Exceeded = &n
		}
		var msg kafkago.Message
		msg, err = serializeToMessage(m)
		msgs = append(msgs, msg)
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// serializeToMessage marshals an ExceedanceMessage into a Kafka message keyed
// by city, station and year.
func serializeToMessage(m ExceedanceMessage) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize exceedance: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.City + "/" + m.Station + "/" + strconv.Itoa(m.Year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(m.RunID)},
			{Key: "generated_at", Value: []byte(m.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
