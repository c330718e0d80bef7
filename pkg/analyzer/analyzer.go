package analyzer

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/amosWeiskopf/harvester/internal/models"
)

// Severity levels for findings.
const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// sparseThreshold is the fill ratio under which a field is reported as
// sparsely populated.
const sparseThreshold = 0.5

// Analyzer summarises how well the configured fields were filled in a run
type Analyzer struct {
	logger *zap.Logger
}

// FieldCoverage counts the filled and sentinel values of one field.
type FieldCoverage struct {
	Field   string `json:"field"`
	Filled  int    `json:"filled"`
	Missing int    `json:"missing"`
}

// Ratio is the share of records with a real value, 0 when there are none.
func (c FieldCoverage) Ratio() float64 {
	total := c.Filled + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Filled) / float64(total)
}

// Finding is a notable observation about the extracted data.
type Finding struct {
	Field       string `json:"field"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Summary is the coverage report of one run.
type Summary struct {
	Records  int             `json:"records"`
	Complete int             `json:"complete"`
	Fields   []FieldCoverage `json:"fields"`
	Findings []Finding       `json:"findings"`
}

// New creates a new Analyzer instance
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Analyze counts, per field and in field order, how many records hold a
// value and how many hold the sentinel.
func (a *Analyzer) Analyze(records []models.Record, fields []string) *Summary {
	summary := &Summary{
		Records: len(records),
		Fields:  make([]FieldCoverage, len(fields)),
	}
	for i, name := range fields {
		summary.Fields[i].Field = name
	}

	for _, r := range records {
		complete := true
		for i, name := range fields {
			if r.Value(name) == models.Sentinel {
				summary.Fields[i].Missing++
				complete = false
			} else {
				summary.Fields[i].Filled++
			}
		}
		if complete {
			summary.Complete++
		}
	}

	summary.Findings = a.generateFindings(summary)
	return summary
}

// generateFindings flags fields that never matched or matched in fewer than
// half of the records. Worst coverage first.
func (a *Analyzer) generateFindings(summary *Summary) []Finding {
	if summary.Records == 0 {
		return nil
	}

	coverage := make([]FieldCoverage, len(summary.Fields))
	copy(coverage, summary.Fields)
	sort.SliceStable(coverage, func(i, j int) bool {
		return coverage[i].Ratio() < coverage[j].Ratio()
	})

	var findings []Finding
	for _, c := range coverage {
		switch {
		case c.Filled == 0:
			findings = append(findings, Finding{
				Field:       c.Field,
				Severity:    SeverityWarning,
				Description: "no record has a value; check the selector",
			})
		case c.Ratio() < sparseThreshold:
			findings = append(findings, Finding{
				Field:       c.Field,
				Severity:    SeverityInfo,
				Description: fmt.Sprintf("only %d of %d records have a value", c.Filled, summary.Records),
			})
		}
	}
	return findings
}

// Log writes the summary to the logger, one entry per field.
func (a *Analyzer) Log(summary *Summary) {
	a.logger.Info("coverage summary",
		zap.Int("records", summary.Records),
		zap.Int("complete", summary.Complete),
	)
	for _, c := range summary.Fields {
		a.logger.Info("field coverage",
			zap.String("field", c.Field),
			zap.Int("filled", c.Filled),
			zap.Int("missing", c.Missing),
		)
	}
	for _, f := range summary.Findings {
		if f.Severity == SeverityWarning {
			a.logger.Warn(f.Description, zap.String("field", f.Field))
		} else {
			a.logger.Info(f.Description, zap.String("field", f.Field))
		}
	}
}
