package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

func sampleEntry() domain.LogEntry {
	return domain.LogEntry{
		ID:       "e1",
		Time:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Category: domain.LogPingAlert,
		Title:    "Host unreachable",
		Detail:   `Router "main" (192.168.1.1): no response`,
	}
}

func TestMarshalLogsCSV(t *testing.T) {
	out := string(MarshalLogsCSV([]domain.LogEntry{sampleEntry()}))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("want header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != `"id","type","title","detail","time","displayTime"` {
		t.Fatalf("header: %s", lines[0])
	}
	row := lines[1]
	if !strings.HasPrefix(row, `"e1","ping-alert","Host unreachable",`) {
		t.Fatalf("row prefix: %s", row)
	}
	// embedded quotes are doubled
	if !strings.Contains(row, `"Router ""main"" (192.168.1.1): no response"`) {
		t.Fatalf("quote escaping: %s", row)
	}
	if !strings.Contains(row, `"2026-03-01T09:30:00Z"`) {
		t.Fatalf("utc time column: %s", row)
	}
}

func TestMarshalLogsCSV_HeaderOnlyForNoEntries(t *testing.T) {
	out := string(MarshalLogsCSV(nil))
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("want only the header: %q", out)
	}
}

func TestMarshalLogsJSON(t *testing.T) {
	raw, err := MarshalLogsJSON(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("nil entries must render an empty array: %q", raw)
	}

	raw, err = MarshalLogsJSON([]domain.LogEntry{sampleEntry()})
	if err != nil {
		t.Fatal(err)
	}
	var decoded []domain.LogEntry
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].ID != "e1" || decoded[0].Category != domain.LogPingAlert {
		t.Fatalf("roundtrip: %+v", decoded)
	}
}

func TestExportLogs_EmptyIsNoOp(t *testing.T) {
	dir := t.TempDir()

	written, err := ExportLogsCSV(filepath.Join(dir, "log.csv"), nil)
	if err != nil || written {
		t.Fatalf("empty csv export: written=%v err=%v", written, err)
	}
	written, err = ExportLogsJSON(filepath.Join(dir, "log.json"), nil)
	if err != nil || written {
		t.Fatalf("empty json export: written=%v err=%v", written, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("no files expected, found %d", len(entries))
	}
}

func TestExportLogs_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	logs := []domain.LogEntry{sampleEntry()}

	path := filepath.Join(dir, "log.csv")
	written, err := ExportLogsCSV(path, logs)
	if err != nil || !written {
		t.Fatalf("csv export: written=%v err=%v", written, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), `"id","type"`) {
		t.Fatalf("csv content: %q", raw)
	}
}
