package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pitwall/pitwall/internal/record"
)

// Source formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Source describes one file of raw records to ingest.
type Source struct {
	// Name identifies the dataset; it becomes the documents' Source field.
	Name string

	// Path is the file location on disk.
	Path string

	// Format is csv or json. Empty means: derive from the path extension.
	Format string

	// Category tags every record of this source.
	Category string

	// Season is the 4-digit year the records belong to.
	Season string

	// Priority orders sources; runs can skip low-priority sources.
	Priority int
}

// resolveFormat returns the effective format for the source.
func (s Source) resolveFormat() string {
	if s.Format != "" {
		return strings.ToLower(s.Format)
	}
	switch {
	case strings.HasSuffix(strings.ToLower(s.Path), ".json"):
		return FormatJSON
	default:
		return FormatCSV
	}
}

// readRecords loads the source file into raw records. CSV files must carry
// a header row; JSON files must hold an array of flat objects. Non-string
// JSON values are rendered with their default formatting so the normalizer
// sees plain strings either way.
func readRecords(src Source) ([]record.RawRecord, error) {
	switch src.resolveFormat() {
	case FormatCSV:
		return readCSV(src.Path)
	case FormatJSON:
		return readJSON(src.Path)
	default:
		return nil, fmt.Errorf("unsupported source format %q for %s", src.Format, src.Path)
	}
}

func readCSV(path string) ([]record.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv source: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	records := make([]record.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := make(record.RawRecord, len(header))
		for i, key := range header {
			if i < len(row) {
				raw[strings.TrimSpace(key)] = row[i]
			}
		}
		records = append(records, raw)
	}
	return records, nil
}

func readJSON(path string) ([]record.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open json source: %w", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode json source: %w", err)
	}

	records := make([]record.RawRecord, 0, len(rows))
	for _, row := range rows {
		raw := make(record.RawRecord, len(row))
		for k, v := range row {
			switch value := v.(type) {
			case string:
				raw[k] = value
			case nil:
				// skip
			case float64:
				raw[k] = formatNumber(value)
			default:
				raw[k] = fmt.Sprintf("%v", value)
			}
		}
		records = append(records, raw)
	}
	return records, nil
}

// formatNumber renders whole floats without a decimal point so "77" stays
// "77" across CSV and JSON sources.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
