// Package telemetry persists decisions for offline analysis: a JSONL file
// recorder and an optional Kafka publisher.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"greenlight-go/internal/signal"
)

// DecisionSink consumes decisions as the engine produces them.
type DecisionSink interface {
	Publish(signal.Decision) error
}

// DecisionRecorder appends decisions as JSON lines for later analysis.
type DecisionRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewDecisionRecorder creates/opens the target file and returns a recorder.
func NewDecisionRecorder(path string) (*DecisionRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Publish writes a single decision to the underlying JSONL file.
func (r *DecisionRecorder) Publish(d signal.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return fmt.Errorf("decision recorder closed")
	}
	return r.enc.Encode(d)
}

// Close flushes and closes the file handle.
func (r *DecisionRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// KafkaPublisher ships decisions to a Kafka topic keyed by symbol, so
// downstream consumers see per-symbol decisions in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

// NewKafkaPublisher dials the brokers and returns a synchronous publisher.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return newKafkaPublisher(producer, topic, log), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

// Publish sends one decision; errors are returned, not fatal.
func (k *KafkaPublisher) Publish(d signal.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(d.Symbol),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		k.log.Warn().Err(err).Str("sym", d.Symbol).Msg("kafka publish failed")
	}
	return err
}

// Close shuts down the underlying producer.
func (k *KafkaPublisher) Close() error { return k.producer.Close() }

// Fanout forwards each decision to every sink, keeping the first error.
type Fanout []DecisionSink

// Publish delivers to all sinks even if one fails.
func (f Fanout) Publish(d signal.Decision) error {
	var first error
	for _, sink := range f {
		if err := sink.Publish(d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
