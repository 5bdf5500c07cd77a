// Package kafkareporter publishes crawled pages to a Kafka topic.
package kafkareporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config names the brokers and topic.
type Config struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// Reporter implements crawler.Reporter by writing one message per page,
// keyed by page URL.
type Reporter struct {
	writer  messageWriter
	timeout time.Duration
	now     func() time.Time
}

// New creates a Reporter backed by a kafka.Writer.
func New(cfg Config) (*Reporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("reporter.kafka_brokers is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("reporter.kafka_topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	return NewWithWriter(w, cfg.Timeout), nil
}

// NewWithWriter builds a Reporter using a custom writer (tests).
func NewWithWriter(writer messageWriter, timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reporter{
		writer:  writer,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Report writes page as a JSON message.
func (r *Reporter) Report(ctx context.Context, page crawler.PageResult) error {
	if page.Links == nil {
		page.Links = []string{}
	}
	payload, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(page.URL),
		Value: payload,
		Time:  r.now(),
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (r *Reporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
