package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

// ExitError is returned after an error has already been written
type ExitError struct {
	Code int
	Err  types.CLIError
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Code, e.Err.Message)
}

// OutputWriter handles CLI output formatting
type OutputWriter struct {
	format   types.OutputFormat
	quiet    bool
	verbose  bool
	traceID  string
	warnings []types.CLIWarning
	stdout   io.Writer
	stderr   io.Writer
	mu       sync.Mutex
}

// NewOutputWriter creates a new output writer
func NewOutputWriter(format types.OutputFormat, quiet, verbose bool) *OutputWriter {
	return &OutputWriter{
		format:   format,
		quiet:    quiet,
		verbose:  verbose,
		warnings: []types.CLIWarning{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// WithWriters redirects output, mainly for tests
func (w *OutputWriter) WithWriters(stdout, stderr io.Writer) *OutputWriter {
	w.stdout = stdout
	w.stderr = stderr
	return w
}

// WithTraceID reuses an existing trace ID in the envelope
func (w *OutputWriter) WithTraceID(traceID string) *OutputWriter {
	w.traceID = traceID
	return w
}

// AddWarning adds a warning to the output
func (w *OutputWriter) AddWarning(code, message, severity string) {
	w.warnings = append(w.warnings, types.CLIWarning{
		Code:     code,
		Message:  message,
		Severity: severity,
	})
}

func (w *OutputWriter) envelopeTraceID() string {
	if w.traceID != "" {
		return w.traceID
	}
	return uuid.New().String()
}

// WriteSuccess writes a successful result
func (w *OutputWriter) WriteSuccess(command string, data interface{}) error {
	output := types.CLIOutput{
		SchemaVersion: utils.SchemaVersion,
		TraceID:       w.envelopeTraceID(),
		Command:       command,
		Data:          data,
		Warnings:      w.warnings,
		Errors:        []types.CLIError{},
	}

	if w.format == types.OutputFormatJSON {
		return w.writeJSON(output)
	}
	for _, warning := range w.warnings {
		w.Log("Warning [%s]: %s", warning.Code, warning.Message)
	}
	return w.writeTable(command, data)
}

// WriteError writes an error result and returns an ExitError carrying its exit code
func (w *OutputWriter) WriteError(command string, cliErr types.CLIError) error {
	return w.writeError(command, cliErr, nil)
}

// WriteFailure is WriteErr with data placed in the JSON envelope alongside the error
func (w *OutputWriter) WriteFailure(command string, err error, data interface{}) error {
	return w.writeError(command, utils.AsCLIError(err), data)
}

func (w *OutputWriter) writeError(command string, cliErr types.CLIError, data interface{}) error {
	if w.format == types.OutputFormatJSON {
		output := types.CLIOutput{
			SchemaVersion: utils.SchemaVersion,
			TraceID:       w.envelopeTraceID(),
			Command:       command,
			Data:          data,
			Warnings:      w.warnings,
			Errors:        []types.CLIError{cliErr},
		}
		if err := w.writeJSON(output); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w.stderr, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
		if action, ok := cliErr.Context["suggestedAction"]; ok {
			fmt.Fprintf(w.stderr, "  %v\n", action)
		}
	}
	return &ExitError{Code: utils.GetExitCode(cliErr.Code), Err: cliErr}
}

// WriteErr is WriteError for any error value
func (w *OutputWriter) WriteErr(command string, err error) error {
	return w.WriteError(command, utils.AsCLIError(err))
}

func (w *OutputWriter) writeJSON(output types.CLIOutput) error {
	encoder := json.NewEncoder(w.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (w *OutputWriter) writeTable(command string, data interface{}) error {
	if renderable, ok := data.(types.TableRenderable); ok {
		return w.renderTable(renderable.AsTableRenderer())
	}
	if renderer, ok := data.(types.TableRenderer); ok {
		return w.renderTable(renderer)
	}
	// Fallback to JSON for unknown types
	return w.writeJSON(types.CLIOutput{
		SchemaVersion: utils.SchemaVersion,
		TraceID:       w.envelopeTraceID(),
		Command:       command,
		Data:          data,
		Warnings:      w.warnings,
		Errors:        []types.CLIError{},
	})
}

func (w *OutputWriter) renderTable(renderer types.TableRenderer) error {
	rows := renderer.Rows()
	if len(rows) == 0 {
		if !w.quiet {
			fmt.Fprintln(w.stdout, renderer.EmptyMessage())
		}
		return nil
	}

	table := tablewriter.NewWriter(w.stdout)
	table.SetHeader(renderer.Headers())
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
	return nil
}

// Print writes raw text to stdout
func (w *OutputWriter) Print(text string) {
	fmt.Fprint(w.stdout, text)
}

// Log writes to stderr if not quiet
func (w *OutputWriter) Log(format string, args ...interface{}) {
	if !w.quiet {
		w.mu.Lock()
		defer w.mu.Unlock()
		fmt.Fprintf(w.stderr, format+"\n", args...)
	}
}

// Verbose writes to stderr if verbose is enabled
func (w *OutputWriter) Verbose(format string, args ...interface{}) {
	if w.verbose {
		w.mu.Lock()
		defer w.mu.Unlock()
		fmt.Fprintf(w.stderr, "[VERBOSE] "+format+"\n", args...)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
