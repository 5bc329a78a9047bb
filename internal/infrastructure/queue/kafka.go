package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"FeedSummarizer/internal/ports"
)

const fetchRetryDelay = time.Second

var _ ports.Dispatcher = (*Kafka)(nil)

// KafkaConfig names the brokers, topic and consumer group.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// Kafka publishes jobs to a topic and consumes them with manual commits.
// A job is committed only after its handler returns, so delivery is at least once.
type Kafka struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	handler ports.JobHandler
	log     *slog.Logger
	started bool
	done    chan struct{}

	retryDelay time.Duration
}

func NewKafka(cfg KafkaConfig, handler ports.JobHandler, log *slog.Logger) *Kafka {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.Group,
		MinBytes:       1,
		MaxBytes:       1e6,
		CommitInterval: 0,
	})
	return &Kafka{
		writer:     writer,
		reader:     reader,
		handler:    handler,
		log:        log,
		done:       make(chan struct{}),
		retryDelay: fetchRetryDelay,
	}
}

// Dispatch writes the job; broker failures surface as ErrDispatchUnavailable.
func (k *Kafka) Dispatch(ctx context.Context, job ports.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	msg := kafka.Message{Key: []byte(job.RunID), Value: payload}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Warn("kafka dispatch failed", "run_id", job.RunID, "err", err)
		return fmt.Errorf("%w: %w", ports.ErrDispatchUnavailable, err)
	}
	return nil
}

// Start consumes jobs until ctx is cancelled.
func (k *Kafka) Start(ctx context.Context) {
	k.started = true
	go func() {
		defer close(k.done)
		for {
			msg, err := k.reader.FetchMessage(ctx)
			if err != nil {
				if k.stopAfterFetchError(ctx, err) {
					k.log.Info("kafka consumer stopping")
					return
				}
				continue
			}

			var job ports.Job
			if err := json.Unmarshal(msg.Value, &job); err != nil {
				k.log.Warn("drop malformed job", "err", err, "partition", msg.Partition, "offset", msg.Offset)
			} else {
				k.handler(ctx, job)
			}

			if err := k.reader.CommitMessages(ctx, msg); err != nil {
				k.log.Error("commit message", "err", err, "run_id", job.RunID)
			}
		}
	}()
}

// stopAfterFetchError reports whether the consumer loop should end. Transient
// errors are logged and followed by a pause of retryDelay.
func (k *Kafka) stopAfterFetchError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return true
	}
	k.log.Error("fetch message", "err", err, "retry_in", k.retryDelay)

	timer := time.NewTimer(k.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	}
}

// Stop closes the consumer and producer.
func (k *Kafka) Stop(ctx context.Context) error {
	readErr := k.reader.Close()
	if k.started {
		select {
		case <-k.done:
		case <-ctx.Done():
		}
	}
	return errors.Join(readErr, k.writer.Close())
}
