package store

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// MarshalLogsJSON renders entries as a pretty-printed JSON array.
func MarshalLogsJSON(entries []domain.LogEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// MarshalLogsCSV renders entries as CSV with the fixed column order
// id,type,title,detail,time,displayTime. Every value is quoted and
// internal quotes are doubled.
func MarshalLogsCSV(entries []domain.LogEntry) []byte {
	var b strings.Builder
	writeRow(&b, "id", "type", "title", "detail", "time", "displayTime")
	for _, e := range entries {
		writeRow(&b,
			e.ID,
			string(e.Category),
			e.Title,
			e.Detail,
			e.Time.UTC().Format(time.RFC3339),
			e.Time.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return []byte(b.String())
}

func writeRow(b *strings.Builder, values ...string) {
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(v, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

// ExportLogsJSON writes the JSON export to path. An empty list is a
// no-op: no file is produced.
func ExportLogsJSON(path string, entries []domain.LogEntry) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}
	raw, err := MarshalLogsJSON(entries)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(path, raw, 0o644)
}

// ExportLogsCSV writes the CSV export to path, skipping empty lists the
// same way.
func ExportLogsCSV(path string, entries []domain.LogEntry) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}
	return true, os.WriteFile(path, MarshalLogsCSV(entries), 0o644)
}
