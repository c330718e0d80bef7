package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amosWeiskopf/harvester/internal/models"
	"github.com/amosWeiskopf/harvester/pkg/analyzer"
	"github.com/amosWeiskopf/harvester/pkg/utils"
)

// Format is an output serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat accepts "csv" or "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want csv or json)", ErrUnsupportedFormat, s)
	}
}

// OutputPath returns the file the records will be written to. JSON output
// aimed at a .csv path is redirected to the same name with a .json
// extension.
func OutputPath(path string, format Format) string {
	if format == FormatJSON && strings.EqualFold(filepath.Ext(path), ".csv") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	}
	return path
}

// Reporter handles export of scraped records in various formats
type Reporter struct {
	logger *zap.Logger
}

// New creates a new Reporter instance
func New(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger}
}

// Export serializes records to w. fields fixes the column order for CSV.
func (r *Reporter) Export(w io.Writer, records []models.Record, fields []string, format Format) error {
	switch format {
	case FormatCSV:
		return r.generateCSV(w, records, fields)
	case FormatJSON:
		return r.generateJSON(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteFile exports records to path, adjusted by OutputPath, and returns the
// path written. With no records nothing is written and the path is "".
func (r *Reporter) WriteFile(path string, records []models.Record, fields []string, format Format) (string, error) {
	if len(records) == 0 {
		r.logger.Warn("no data to save")
		return "", nil
	}

	path = OutputPath(path, format)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	if err := r.Export(f, records, fields, format); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	r.logger.Info("saved records",
		zap.Int("records", len(records)),
		zap.String("path", path),
		zap.String("format", string(format)),
	)
	return path, nil
}

// generateCSV writes a header of field names followed by one row per record.
func (r *Reporter) generateCSV(w io.Writer, records []models.Record, fields []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}

	row := make([]string, len(fields))
	for _, rec := range records {
		for i, name := range fields {
			row[i] = rec.Value(name)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// generateJSON writes an indented array of objects, keeping non-ASCII text
// and HTML characters as they are.
func (r *Reporter) generateJSON(w io.Writer, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return nil
}

// RunReport renders a short Markdown summary of a finished run.
func (r *Reporter) RunReport(result *models.RunResult, summary *analyzer.Summary) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Scrape report for %s\n\n", utils.RootDomain(result.BaseURL))
	fmt.Fprintf(&buf, "*Started %s, took %s*\n\n", result.StartedAt.Format("January 2, 2006 15:04:05"), result.Duration.Round(time.Millisecond))

	fmt.Fprintf(&buf, "| Metric | Value |\n")
	fmt.Fprintf(&buf, "|--------|-------|\n")
	fmt.Fprintf(&buf, "| Pages fetched | %d |\n", result.PagesFetched)
	fmt.Fprintf(&buf, "| Records | %d |\n", len(result.Records))
	fmt.Fprintf(&buf, "| Stop reason | %s |\n\n", result.Stop)

	if summary == nil || len(summary.Fields) == 0 {
		return buf.String()
	}

	fmt.Fprintf(&buf, "## Field coverage\n\n")
	fmt.Fprintf(&buf, "| Field | Filled | Missing |\n")
	fmt.Fprintf(&buf, "|-------|--------|---------|\n")
	for _, c := range summary.Fields {
		fmt.Fprintf(&buf, "| %s | %d | %d |\n", c.Field, c.Filled, c.Missing)
	}
	fmt.Fprintf(&buf, "\n")

	if len(summary.Findings) > 0 {
		fmt.Fprintf(&buf, "## Findings\n\n")
		for _, f := range summary.Findings {
			fmt.Fprintf(&buf, "- **%s** (%s): %s\n", f.Field, f.Severity, f.Description)
		}
		fmt.Fprintf(&buf, "\n")
	}

	return buf.String()
}
