package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func resetLoggingState() {
	mu.Lock()
	defer mu.Unlock()

	baseLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Logger = baseLogger
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	isTerminalFn = func(int) bool { return false }
}

func readJSONLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	line := strings.TrimSpace(buf.String())
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if line == "" {
		t.Fatalf("expected log output, got empty string")
	}

	var event map[string]interface{}
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	return event
}

func TestInitJSONFormatSetsLevelAndComponent(t *testing.T) {
	t.Cleanup(resetLoggingState)

	var buf bytes.Buffer
	Init(Config{Format: "json", Level: "debug", Component: "compliance", Output: &buf})

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected global level debug, got %s", zerolog.GlobalLevel())
	}

	log.Debug().Str("state", "invalid").Msg("evaluated")
	event := readJSONLine(t, &buf)
	if event["component"] != "compliance" {
		t.Fatalf("expected component compliance, got %v", event["component"])
	}
	if event["state"] != "invalid" {
		t.Fatalf("expected state field, got %v", event["state"])
	}
}

func TestInitConsoleFormatIsHumanReadable(t *testing.T) {
	t.Cleanup(resetLoggingState)

	var buf bytes.Buffer
	Init(Config{Format: "console", Output: &buf})
	log.Info().Msg("hello")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected console output, got JSON: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"DEBUG":    zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"nonsense": zerolog.InfoLevel,
	}
	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestSelectWriterAutoUsesTerminalCheck(t *testing.T) {
	t.Cleanup(resetLoggingState)

	var buf bytes.Buffer
	if w := selectWriter("auto", &buf); w != &buf {
		t.Fatal("non-file writers are never terminals")
	}

	isTerminalFn = func(int) bool { return true }
	if _, ok := selectWriter("auto", os.Stderr).(zerolog.ConsoleWriter); !ok {
		t.Fatal("expected console writer on a terminal")
	}
}

func TestRequestIDs(t *testing.T) {
	t.Cleanup(resetLoggingState)

	ctx, id := WithRequestID(context.Background(), "")
	if id == "" {
		t.Fatal("expected generated request ID")
	}
	if got := RequestIDFromContext(ctx); got != id {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, id)
	}

	_, explicit := WithRequestID(context.Background(), "  req-1 ")
	if explicit != "req-1" {
		t.Fatalf("expected trimmed ID, got %q", explicit)
	}

	var buf bytes.Buffer
	Init(Config{Format: "json", Output: &buf})
	logger := FromContext(ctx)
	logger.Info().Msg("handled")
	event := readJSONLine(t, &buf)
	if event["request_id"] != id {
		t.Fatalf("expected request_id %q, got %v", id, event["request_id"])
	}

	if RequestIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty ID on bare context")
	}
}
