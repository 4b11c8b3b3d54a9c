package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

type move string

func (m move) String() string { return "move:" + string(m) }

func TestPrettyJSONHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.With("game", "g1").WithGroup("search").Debug("decided",
		"move", move("up"),
		"nodes", 42,
		"err", errors.New("boom"),
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not one JSON object: %v\n%s", err, buf.String())
	}
	if got["msg"] != "decided" || got["level"] != "DEBUG" {
		t.Fatalf("msg/level wrong: %v", got)
	}
	if got["game"] != "g1" {
		t.Fatalf("attr added before the group should stay at the top level: %v", got)
	}
	search, ok := got["search"].(map[string]any)
	if !ok {
		t.Fatalf("missing search group: %v", got)
	}
	if search["move"] != "move:up" || search["nodes"] != float64(42) || search["err"] != "boom" {
		t.Fatalf("group contents wrong: %v", search)
	}
}

func TestPrettyJSONHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, nil))
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %s", buf.String())
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatPretty, ""} {
		var buf bytes.Buffer
		logger, err := New(&buf, format, slog.LevelInfo)
		if err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
		logger.Info("hello", "k", 1)
		if !bytes.Contains(buf.Bytes(), []byte("hello")) {
			t.Fatalf("format %q wrote %q", format, buf.String())
		}
	}
	if _, err := New(&bytes.Buffer{}, "xml", slog.LevelInfo); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	if err != nil || level != slog.LevelWarn {
		t.Fatalf("ParseLevel(warn)=%v,%v", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
}
