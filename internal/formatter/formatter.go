// package formatter provides functions to export publish history to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playdeploy/internal/models"
	"github.com/desertthunder/playdeploy/internal/shared"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv", "markdown", "txt"}

// runRecord is the JSON shape of a [models.PublishRun].
type runRecord struct {
	ID            string    `json:"id"`
	Run           int       `json:"run"`
	PackageName   string    `json:"package_name"`
	Track         string    `json:"track"`
	BinaryPath    string    `json:"binary_path"`
	UserFraction  float64   `json:"user_fraction"`
	EditID        string    `json:"edit_id,omitempty"`
	VersionCode   int64     `json:"version_code,omitempty"`
	State         string    `json:"state"`
	FailedStep    string    `json:"failed_step,omitempty"`
	Error         string    `json:"error,omitempty"`
	RollbackError string    `json:"rollback_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitzero"`
}

func toRecord(run *models.PublishRun) runRecord {
	out := run.Outcome()
	return runRecord{
		ID:            run.ID(),
		Run:           run.Sequence(),
		PackageName:   run.PackageName(),
		Track:         run.Track(),
		BinaryPath:    run.BinaryPath(),
		UserFraction:  run.UserFraction(),
		EditID:        out.EditID,
		VersionCode:   out.VersionCode,
		State:         out.State,
		FailedStep:    out.FailedStep,
		Error:         out.Error,
		RollbackError: out.RollbackError,
		StartedAt:     run.StartedAt(),
		CompletedAt:   out.CompletedAt,
	}
}

// ExportToJSON converts runs to an indented JSON array
func ExportToJSON(runs []*models.PublishRun) ([]byte, error) {
	records := make([]runRecord, 0, len(runs))
	for _, run := range runs {
		records = append(records, toRecord(run))
	}
	return shared.MarshalJSON(records, true)
}

// ExportToCSV converts runs to CSV format with one row per run
func ExportToCSV(runs []*models.PublishRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Run", "ID", "Package", "Track", "Binary", "Fraction", "Edit", "Version", "State", "Failed Step", "Error", "Rollback Error", "Started", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		out := run.Outcome()
		record := []string{
			strconv.Itoa(run.Sequence()),
			run.ID(),
			run.PackageName(),
			run.Track(),
			run.BinaryPath(),
			strconv.FormatFloat(run.UserFraction(), 'f', -1, 64),
			out.EditID,
			versionString(out.VersionCode),
			out.State,
			out.FailedStep,
			out.Error,
			out.RollbackError,
			run.StartedAt().Format(time.RFC3339),
			shared.FormatDuration(run.Duration()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts runs to a Markdown report with a summary and one table row per run
func ExportToMarkdown(runs []*models.PublishRun) ([]byte, error) {
	var buf bytes.Buffer

	committed := 0
	for _, run := range runs {
		if run.Succeeded() {
			committed++
		}
	}

	buf.WriteString("# Publish History\n\n")
	buf.WriteString(fmt.Sprintf("**Runs**: %d\n", len(runs)))
	buf.WriteString(fmt.Sprintf("**Committed**: %d\n", committed))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n\n", len(runs)-committed))

	if len(runs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Package | Track | Version | State | Started | Error |\n")
	buf.WriteString("|---|---------|-------|---------|-------|---------|-------|\n")
	for _, run := range runs {
		out := run.Outcome()
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s |\n",
			run.Sequence(),
			run.PackageName(),
			run.Track(),
			versionString(out.VersionCode),
			out.State,
			run.StartedAt().Format("2006-01-02 15:04"),
			markdownCell(failureText(out)),
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts runs to plain text format
func ExportToText(runs []*models.PublishRun) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Publish runs: %d\n\n", len(runs)))

	for _, run := range runs {
		out := run.Outcome()
		buf.WriteString(fmt.Sprintf("#%d %s %s → %s [%s]", run.Sequence(), run.StartedAt().Format(time.RFC3339), run.PackageName(), run.Track(), out.State))
		if out.VersionCode != 0 {
			buf.WriteString(fmt.Sprintf(" version %d", out.VersionCode))
		}
		buf.WriteString("\n")
		if text := failureText(out); text != "" {
			buf.WriteString(fmt.Sprintf("    %s\n", text))
		}
	}

	return buf.Bytes(), nil
}

// Export renders runs in the given format.
func Export(runs []*models.PublishRun, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return ExportToJSON(runs)
	case "csv":
		return ExportToCSV(runs)
	case "markdown", "md":
		return ExportToMarkdown(runs)
	case "txt", "text":
		return ExportToText(runs)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q (expected one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders runs and writes them to w.
func WriteExport(w io.Writer, runs []*models.PublishRun, format string) error {
	data, err := Export(runs, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteExportFile renders runs into a file and returns its path.
//
// Defaults to publish_history.{ext} as the filename.
func WriteExportFile(runs []*models.PublishRun, format, path string) (string, error) {
	if path == "" {
		path = "publish_history." + Extension(format)
	}

	data, err := Export(runs, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "csv"
	case "markdown", "md":
		return "md"
	case "txt", "text":
		return "txt"
	default:
		return "json"
	}
}

func versionString(vc int64) string {
	if vc == 0 {
		return ""
	}
	return strconv.FormatInt(vc, 10)
}

func failureText(out models.RunOutcome) string {
	if out.Error == "" {
		return ""
	}
	text := fmt.Sprintf("%s: %s", out.FailedStep, out.Error)
	if out.RollbackError != "" {
		text += fmt.Sprintf(" (%s)", out.RollbackError)
	}
	return text
}

func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
