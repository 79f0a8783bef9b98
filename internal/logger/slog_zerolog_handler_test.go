package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func bridgeWithBuffer() (*bytes.Buffer, *zerolog.Logger) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	return &buf, &zl
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("unmarshal log line %q: %v", lines[len(lines)-1], err)
	}
	return rec
}

func TestBridge_FieldKindsReachSink(t *testing.T) {
	buf, zl := bridgeWithBuffer()
	log := NewSlog(zl)

	log.Info("snapshot stored",
		"generation", uint64(7),
		"clusters", 12,
		"cases", 34.5,
		"stale", false,
		"interval", 5*time.Minute,
	)

	rec := lastRecord(t, buf)
	if rec["message"] != "snapshot stored" && rec["msg"] != "snapshot stored" {
		t.Fatalf("message missing: %v", rec)
	}
	if rec["generation"] != float64(7) || rec["clusters"] != float64(12) {
		t.Fatalf("numeric fields: %v", rec)
	}
	if rec["cases"] != 34.5 || rec["stale"] != false {
		t.Fatalf("float/bool fields: %v", rec)
	}
	if rec["interval"] != "5m0s" {
		t.Fatalf("interval = %v, want the duration string", rec["interval"])
	}
}

func TestBridge_LevelMapping(t *testing.T) {
	buf, zl := bridgeWithBuffer()
	log := NewSlog(zl)

	log.Warn("slow upstream")
	if rec := lastRecord(t, buf); rec["level"] != "warn" {
		t.Fatalf("level = %v, want warn", rec["level"])
	}
	log.Error("fetch failed")
	if rec := lastRecord(t, buf); rec["level"] != "error" {
		t.Fatalf("level = %v, want error", rec["level"])
	}
}

func TestBridge_ContextFieldsSurface(t *testing.T) {
	buf, zl := bridgeWithBuffer()
	log := NewSlog(zl)

	ctx := WithComponent(WithSource(context.Background(), "dengue"), "poller")
	log.InfoContext(ctx, "poll complete")

	rec := lastRecord(t, buf)
	if rec["source"] != "dengue" || rec["component"] != "poller" {
		t.Fatalf("context fields: %v", rec)
	}
}

func TestBridge_WithAttrsDoesNotLeakBetweenChildren(t *testing.T) {
	buf, zl := bridgeWithBuffer()
	log := NewSlog(zl)

	child := log.With("dataset", "dengue")
	child.Info("tagged")
	if rec := lastRecord(t, buf); rec["dataset"] != "dengue" {
		t.Fatalf("child fields: %v", rec)
	}

	log.Info("untagged")
	if rec := lastRecord(t, buf); rec["dataset"] != nil {
		t.Fatalf("parent must not inherit child fields: %v", rec)
	}
}
