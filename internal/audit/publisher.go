package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultBatchSize     = 256
	defaultFlushInterval = time.Second
)

// sink is the transport seam under the publisher: production code publishes
// to Kafka, tests capture batches in memory.
type sink interface {
	publish(ctx context.Context, events []Event) error
	close()
}

// KafkaPublisher buffers security events and publishes them to a Kafka topic
// in batches. Emit never blocks: a full buffer drops the oldest events.
type KafkaPublisher struct {
	buffer *ringBuffer
	sink   sink
	logger *slog.Logger

	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewKafkaPublisher connects to the brokers, ensures the topic exists, and
// starts the background flush worker.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	p := newPublisher(&kafkaSink{client: client}, logger)
	return p, nil
}

func newPublisher(s sink, logger *slog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		buffer:        newRingBuffer(10000),
		sink:          s,
		logger:        logger,
		flushInterval: defaultFlushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go p.run()
	return p
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	responses, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, resp := range responses {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %q: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Emit buffers the event for asynchronous publishing. Missing ID/timestamp
// are filled in.
func (p *KafkaPublisher) Emit(_ context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.buffer.Enqueue(event)
}

// Close flushes remaining events and releases the Kafka client.
func (p *KafkaPublisher) Close() {
	close(p.stop)
	<-p.done
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.stop:
			p.flush()
			p.sink.close()
			return
		}
	}
}

func (p *KafkaPublisher) flush() {
	for {
		batch := p.buffer.DequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.sink.publish(ctx, batch)
		cancel()
		if err != nil {
			// Hold the batch for the next tick; a transient broker outage
			// must not lose events. The ring stays bounded either way.
			p.buffer.Requeue(batch)
			p.logger.Error("failed to publish audit batch, requeued",
				"error", err,
				"batch_size", len(batch),
				"dropped_total", p.buffer.Dropped(),
			)
			return
		}
	}
}

type kafkaSink struct {
	client *kgo.Client
}

func (s *kafkaSink) publish(ctx context.Context, events []Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(event.Email),
			Value: value,
		})
	}
	return s.client.ProduceSync(ctx, records...).FirstErr()
}

func (s *kafkaSink) close() {
	s.client.Close()
}
