// Package telemetry carries key/value readings out of the control loop.  Publication
// is one way and best effort: nothing read back from a sink influences control.
package telemetry

import (
	"sort"
	"sync"

	"github.com/tigerbot-team/swervebot/pkg/log"
)

type Sink interface {
	PutNumber(key string, value float64)
	PutBool(key string, value bool)
}

// Flusher is implemented by sinks that want to know when a tick's worth of values has
// been published.
type Flusher interface {
	Flush()
}

// Flush calls Flush on s if it supports it.
func Flush(s Sink) {
	if f, ok := s.(Flusher); ok {
		f.Flush()
	}
}

// Table keeps the latest value for each key.  Safe to read from other goroutines while
// the control loop writes to it.
type Table struct {
	lock   sync.RWMutex
	values map[string]interface{}
}

func NewTable() *Table {
	return &Table{values: map[string]interface{}{}}
}

func (t *Table) PutNumber(key string, value float64) {
	t.put(key, value)
}

func (t *Table) PutBool(key string, value bool) {
	t.put(key, value)
}

func (t *Table) put(key string, value interface{}) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.values[key] = value
}

func (t *Table) Number(key string) (float64, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	v, ok := t.values[key].(float64)
	return v, ok
}

func (t *Table) Bool(key string) (bool, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	v, ok := t.values[key].(bool)
	return v, ok
}

// Snapshot returns a copy of all the current values.
func (t *Table) Snapshot() map[string]interface{} {
	t.lock.RLock()
	defer t.lock.RUnlock()
	out := make(map[string]interface{}, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

func (t *Table) Keys() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogSink collects values and logs them as a single debug line every Every flushes.
type LogSink struct {
	Every int

	log     log.Logger
	table   *Table
	flushes int
}

func NewLogSink(l log.Logger, every int) *LogSink {
	if every < 1 {
		every = 1
	}
	return &LogSink{Every: every, log: l, table: NewTable()}
}

func (s *LogSink) PutNumber(key string, value float64) {
	s.table.PutNumber(key, value)
}

func (s *LogSink) PutBool(key string, value bool) {
	s.table.PutBool(key, value)
}

func (s *LogSink) Flush() {
	s.flushes++
	if s.flushes%s.Every != 0 {
		return
	}
	s.log.WithFields(s.table.Snapshot()).Debugf("telemetry")
}

// Multi fans values out to several sinks.
type Multi []Sink

func (m Multi) PutNumber(key string, value float64) {
	for _, s := range m {
		s.PutNumber(key, value)
	}
}

func (m Multi) PutBool(key string, value bool) {
	for _, s := range m {
		s.PutBool(key, value)
	}
}

func (m Multi) Flush() {
	for _, s := range m {
		Flush(s)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) PutNumber(string, float64) {}
func (Discard) PutBool(string, bool)      {}
