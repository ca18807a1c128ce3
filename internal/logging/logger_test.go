package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rescale/filequery/internal/events"
)

func TestLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("fetch", nil, &buf)

	l.Info().Int("count", 3).Msg("Retrieved files")

	out := buf.String()
	if !strings.Contains(out, `"component":"fetch"`) {
		t.Errorf("output %q missing component", out)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("output %q missing field", out)
	}
}

func TestLoggerForwardsWarningsToBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	var buf bytes.Buffer
	l := NewLoggerWithWriter("fetch", bus, &buf)
	l.Info().Msg("not forwarded")
	l.Warn().Msg("forwarded")

	select {
	case e := <-ch:
		logEvent := e.(*events.LogEvent)
		if logEvent.Message != "forwarded" || logEvent.Level != events.WarnLevel || logEvent.Source != "fetch" {
			t.Errorf("unexpected log event %+v", logEvent)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for log event")
	}

	select {
	case e := <-ch:
		t.Errorf("unexpected extra event %+v", e)
	default:
	}
}

func TestNamedSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("cli", nil, &buf)
	child := parent.Named("store")
	child.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"store"`) {
		t.Errorf("output %q missing child component", buf.String())
	}

	Nop().Named("x").Info().Msg("discarded")
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Error("debug not parsed")
	}
	if ParseLevel("") != zerolog.InfoLevel || ParseLevel("bogus") != zerolog.InfoLevel {
		t.Error("fallback should be info")
	}
}
