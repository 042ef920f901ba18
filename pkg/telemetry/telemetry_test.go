package telemetry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tigerbot-team/swervebot/pkg/log"
)

func TestTable(t *testing.T) {
	tab := NewTable()
	tab.PutNumber("x", 1.5)
	tab.PutBool("waiting", true)
	tab.PutNumber("x", 2.5)

	if v, ok := tab.Number("x"); !ok || v != 2.5 {
		t.Errorf("x = %v, %v", v, ok)
	}
	if v, ok := tab.Bool("waiting"); !ok || !v {
		t.Errorf("waiting = %v, %v", v, ok)
	}
	if _, ok := tab.Number("waiting"); ok {
		t.Errorf("bool should not read back as a number")
	}
	snap := tab.Snapshot()
	tab.PutNumber("y", 3)
	if len(snap) != 2 {
		t.Errorf("snapshot changed underneath us: %v", snap)
	}
	if keys := tab.Keys(); strings.Join(keys, ",") != "waiting,x,y" {
		t.Errorf("keys %v", keys)
	}
}

func TestMultiAndLogSink(t *testing.T) {
	var buf bytes.Buffer
	ls := NewLogSink(log.NewWriterLogger(&buf, logrus.DebugLevel), 2)
	tab := NewTable()
	m := Multi{tab, ls, Discard{}}

	m.PutNumber("heading", 90)
	m.PutBool("auto-waiting", false)
	Flush(m)
	if buf.Len() != 0 {
		t.Fatalf("logged on first flush: %q", buf.String())
	}
	Flush(m)
	if !strings.Contains(buf.String(), "auto-waiting=false heading=90") {
		t.Errorf("unexpected log output %q", buf.String())
	}
	if v, _ := tab.Number("heading"); v != 90 {
		t.Errorf("table missed fan-out, heading=%v", v)
	}
}
