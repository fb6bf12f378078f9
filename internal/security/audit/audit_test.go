package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func auditEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("parse audit entry %q: %v", line, err)
	}
	return entry
}

func TestLogActionCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRequestID(context.Background(), "req-123")
	al.LogAction(ctx, "officer-1", "check_in", "visit", "visit-1", "success", "")

	entry := auditEntry(t, &buf)
	if entry["request_id"] != "req-123" {
		t.Fatalf("expected request_id req-123, got %v", entry["request_id"])
	}
	if entry["officer_id"] != "officer-1" || entry["action"] != "check_in" {
		t.Fatalf("unexpected audit entry: %v", entry)
	}
}

func TestLogActionWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAction(context.Background(), "officer-1", "ban", "visitor", "v1", "success", "theft")

	entry := auditEntry(t, &buf)
	if entry["request_id"] != "" {
		t.Fatalf("expected empty request_id, got %v", entry["request_id"])
	}
}
