package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, logrus.DebugLevel)
	l.WithFields(map[string]interface{}{"b": 2, "a": 1}).Warnf("pose %d", 7)

	line := buf.String()
	if !strings.Contains(line, "[WAR] pose 7 a=1 b=2\n") {
		t.Fatalf("unexpected log line %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, logrus.InfoLevel)
	l.Debugf("hidden")
	l.WithField("module", "front-left").Infof("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug line logged at info level")
	}
	if !strings.Contains(buf.String(), "[INF] shown module=front-left") {
		t.Errorf("missing info line in %q", buf.String())
	}
}

func TestNewLogrusLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogrusLogger("debug", dir)
	if err != nil {
		t.Fatalf("NewLogrusLogger failed: %v", err)
	}
	l.Infof("hello")
}
