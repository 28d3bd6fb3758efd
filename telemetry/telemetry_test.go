// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewRecorderLogsEvent(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)

	rec := NewRecorder(log, nil, nil)
	rec("rule_match", map[string]interface{}{"rule": "r1"})

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Data["event"] != "rule_match" || entries[0].Data["rule"] != "r1" {
		t.Fatalf("entry fields = %+v", entries[0].Data)
	}
}

func TestNewRecorderNilLoggerDefaults(t *testing.T) {
	rec := NewRecorder(nil, nil, nil)
	rec("rule_error", map[string]interface{}{"err": "boom"})
}

func TestCountersIncrementWithoutPanicking(t *testing.T) {
	counters, err := NewCounters(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewCounters: %v", err)
	}
	rec := NewRecorder(nil, counters, nil)
	rec("rule_match", nil)
	rec("rule_error", nil)
	rec("tx_blocked", nil)
}

func TestKafkaSinkDropsWhenFull(t *testing.T) {
	s := &KafkaSink{queue: make(chan sinkEvent, 1)}
	s.Publish("e1", nil)
	s.Publish("e2", nil) // queue full, no consumer draining; must not block
	if s.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", s.Dropped)
	}
}
