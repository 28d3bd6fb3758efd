// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package telemetry builds a sentrytx.Recorder backed by logrus, otel
// counters for match/block/error rates, and an optional non-blocking
// Kafka sink for raw event export. The engine's event surface is narrow
// and already typed (an event name plus a fields map), so the Recorder
// drives otel's metric API directly and keeps logrus as the
// structured-log sink.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/whitaker-io/sentrytx"
)

// Counters holds the otel instruments Recorder increments. Meter is
// expected to come from whatever otel MeterProvider the host wires up;
// nil Counters (built with a noop meter) are a valid, zero-cost default.
type Counters struct {
	RuleMatches metric.Int64Counter
	RuleErrors  metric.Int64Counter
	Blocked     metric.Int64Counter
}

// NewCounters instantiates Counters against m, building every instrument
// once at startup.
func NewCounters(m metric.Meter) (*Counters, error) {
	ruleMatches, err := m.Int64Counter("sentrytx.rule.matches")
	if err != nil {
		return nil, err
	}
	ruleErrors, err := m.Int64Counter("sentrytx.rule.errors")
	if err != nil {
		return nil, err
	}
	blocked, err := m.Int64Counter("sentrytx.tx.blocked")
	if err != nil {
		return nil, err
	}
	return &Counters{RuleMatches: ruleMatches, RuleErrors: ruleErrors, Blocked: blocked}, nil
}

// NewRecorder returns a sentrytx.Recorder that logs every event through log
// (logrus.New() if log is nil, matching pipe.go's own "default to a fresh
// logrus logger" posture) and increments counters for the events that have
// a corresponding instrument. sink may be nil.
func NewRecorder(log *logrus.Logger, counters *Counters, sink *KafkaSink) sentrytx.Recorder {
	if log == nil {
		log = logrus.New()
	}
	return func(event string, fields map[string]interface{}) {
		entry := log.WithField("event", event)
		for k, v := range fields {
			entry = entry.WithField(k, v)
		}
		entry.Info("sentrytx event")

		if counters != nil {
			switch event {
			case "rule_error":
				counters.RuleErrors.Add(context.Background(), 1)
			case "action_error":
				counters.RuleErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("stage", "action")))
			case "rule_match":
				counters.RuleMatches.Add(context.Background(), 1)
			case "tx_blocked":
				counters.Blocked.Add(context.Background(), 1)
			}
		}

		if sink != nil {
			sink.Publish(event, fields)
		}
	}
}

// KafkaSink is a non-blocking event exporter: Publish never blocks the
// calling rule evaluation. When the internal queue is full the event is
// dropped and counted, the way a reverse proxy's telemetry pipeline must
// never let a slow downstream collector add latency to live traffic.
type KafkaSink struct {
	writer  *kafka.Writer
	queue   chan sinkEvent
	dropped chan struct{}

	Dropped uint64
}

type sinkEvent struct {
	event  string
	fields map[string]interface{}
}

// NewKafkaSink starts a background writer goroutine publishing to topic on
// brokers, buffering up to queueSize pending events.
func NewKafkaSink(brokers []string, topic string, queueSize int) *KafkaSink {
	s := &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		queue:   make(chan sinkEvent, queueSize),
		dropped: make(chan struct{}, 1),
	}
	go s.run()
	return s
}

// Publish enqueues event/fields for async export. If the queue is full, the
// event is dropped immediately rather than blocking the caller.
func (s *KafkaSink) Publish(event string, fields map[string]interface{}) {
	select {
	case s.queue <- sinkEvent{event: event, fields: fields}:
	default:
		s.Dropped++
	}
}

func (s *KafkaSink) run() {
	for ev := range s.queue {
		payload, err := json.Marshal(map[string]interface{}{
			"event":  ev.event,
			"fields": ev.fields,
		})
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.writer.WriteMessages(ctx, kafka.Message{Value: payload})
		cancel()
	}
}

// Close stops accepting new events and flushes the underlying writer.
func (s *KafkaSink) Close() error {
	close(s.queue)
	return s.writer.Close()
}
