package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"
)

// ParseExportFormat validates a format name; empty selects JSON
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportFormatJSON:
		return ExportFormatJSON, nil
	case ExportFormatNDJSON:
		return ExportFormatNDJSON, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Export streams entries to w in the given format without buffering the whole
// trail. It stops at the first error from the sequence or the writer.
func Export(w io.Writer, entries iter.Seq2[*Entry, error], format ExportFormat) error {
	switch format {
	case ExportFormatJSON, "":
		return exportJSON(w, entries)
	case ExportFormatNDJSON:
		return exportNDJSON(w, entries)
	case ExportFormatCSV:
		return exportCSV(w, entries)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// exportJSON writes a JSON array, one element per entry
func exportJSON(w io.Writer, entries iter.Seq2[*Entry, error]) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	first := true
	for entry, err := range entries {
		if err != nil {
			return err
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		first = false
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]\n")
	return err
}

// exportNDJSON writes newline-delimited JSON
func exportNDJSON(w io.Writer, entries iter.Seq2[*Entry, error]) error {
	encoder := json.NewEncoder(w)
	for entry, err := range entries {
		if err != nil {
			return err
		}
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	return nil
}

// exportCSV writes a header row followed by one row per entry. States are
// embedded as JSON text.
func exportCSV(w io.Writer, entries iter.Seq2[*Entry, error]) error {
	writer := csv.NewWriter(w)

	header := []string{
		"ID",
		"Timestamp",
		"ProjectID",
		"ActorUserID",
		"Action",
		"TargetType",
		"TargetID",
		"Outcome",
		"Message",
		"BeforeState",
		"AfterState",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for entry, err := range entries {
		if err != nil {
			return err
		}
		row := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Timestamp.Format(time.RFC3339Nano),
			entry.ProjectID,
			entry.ActorUserID,
			string(entry.Action),
			string(entry.TargetType),
			entry.TargetID,
			string(entry.Outcome),
			entry.Message,
			formatState(entry.BeforeState),
			formatState(entry.AfterState),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

func formatState(s State) string {
	if s == nil {
		return ""
	}
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}
