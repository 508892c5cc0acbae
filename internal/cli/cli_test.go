package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *types.IngestionReport {
	return &types.IngestionReport{
		RunID:           "run-1",
		Source:          utils.SourceGCS,
		Parsed:          []types.ParsedFile{types.NewParsedFile("cv.txt", "hello")},
		Failed:          []types.FailedFile{{Filename: "scan.png", Reason: "Unsupported file type"}},
		TotalDiscovered: 2,
	}
}

func TestOutputWriter_JSONEnvelope(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatJSON, false, false).WithWriters(&stdout, &stderr).WithTraceID("run-1")
	out.AddWarning("SUBTREE_SKIPPED", "f1: forbidden", "warning")

	require.NoError(t, out.WriteSuccess("ingest", &ingestResult{Summary: "ok", Report: testReport()}))

	var envelope types.CLIOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &envelope))
	assert.Equal(t, utils.SchemaVersion, envelope.SchemaVersion)
	assert.Equal(t, "run-1", envelope.TraceID)
	assert.Equal(t, "ingest", envelope.Command)
	assert.Len(t, envelope.Warnings, 1)
	assert.Empty(t, envelope.Errors)
	assert.Contains(t, stdout.String(), `"parsed_files"`)
}

func TestOutputWriter_WriteErrorCarriesExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatJSON, false, false).WithWriters(&stdout, &stderr)

	err := out.WriteError("ingest", utils.NewCLIError(utils.ErrCodeNoFilesFound, "No files found in the folder.").Build())

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, utils.ExitNoFilesFound, exitErr.Code)

	var envelope types.CLIOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &envelope))
	require.Len(t, envelope.Errors, 1)
	assert.Equal(t, "No files found in the folder.", envelope.Errors[0].Message)
}

func TestIngestFailure_JSONCarriesErrorResult(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatJSON, false, false).WithWriters(&stdout, &stderr)

	cause := utils.NewAppError(utils.NewCLIError(utils.ErrCodeCredentialsUnavailable, "credentials unavailable (adc): no token").Build())
	err := ingestFailure(out, &pipeline.IngestError{Kind: pipeline.KindCredential, Err: cause})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, utils.ExitCredentialsUnavailable, exitErr.Code)

	var envelope struct {
		Data   types.ErrorResult `json:"data"`
		Errors []types.CLIError  `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &envelope))
	assert.Equal(t, types.ErrorResult{Status: "error", Message: "credentials unavailable (adc): no token"}, envelope.Data)
	require.Len(t, envelope.Errors, 1)
	assert.Equal(t, utils.ErrCodeCredentialsUnavailable, envelope.Errors[0].Code)
}

func TestOutputWriter_TableError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatTable, false, false).WithWriters(&stdout, &stderr)

	cliErr := utils.NewCLIError(utils.ErrCodeCredentialsUnavailable, "credentials unavailable").
		WithContext("suggestedAction", "run gcloud auth application-default login").
		Build()
	err := out.WriteError("ingest", cliErr)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, utils.ExitCredentialsUnavailable, exitErr.Code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Error [CREDENTIALS_UNAVAILABLE]: credentials unavailable")
	assert.Contains(t, stderr.String(), "gcloud auth")
}

func TestOutputWriter_WriteErrUnknown(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatTable, false, false).WithWriters(&stdout, &stderr)

	err := out.WriteErr("report.show", errors.New("disk full"))
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, utils.ExitUnknown, exitErr.Code)
}

func TestOutputWriter_ReportTable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatTable, false, false).WithWriters(&stdout, &stderr)

	require.NoError(t, out.WriteSuccess("ingest", &ingestResult{Report: testReport()}))
	text := stdout.String()
	assert.Contains(t, text, "cv.txt")
	assert.Contains(t, text, "parsed")
	assert.Contains(t, text, "scan.png")
	assert.Contains(t, text, "Unsupported file type")
}

func TestOutputWriter_EmptyTable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatTable, false, false).WithWriters(&stdout, &stderr)

	require.NoError(t, out.WriteSuccess("report.list", &reportListing{}))
	assert.Equal(t, "No stored reports\n", stdout.String())

	stdout.Reset()
	quiet := NewOutputWriter(types.OutputFormatTable, true, false).WithWriters(&stdout, &stderr)
	require.NoError(t, quiet.WriteSuccess("report.list", &reportListing{}))
	assert.Empty(t, stdout.String())
}

func TestSetConfigValue(t *testing.T) {
	cfg := config.DefaultConfig()

	require.NoError(t, setConfigValue(cfg, "backend", "GCS"))
	require.NoError(t, setConfigValue(cfg, "workerPoolSize", "4"))
	require.NoError(t, setConfigValue(cfg, "failOnListingError", "yes"))
	require.NoError(t, setConfigValue(cfg, "discipline", "Sequential"))
	require.NoError(t, setConfigValue(cfg, "defaultBucket", "hiring"))

	assert.Equal(t, "gcs", cfg.Backend)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.True(t, cfg.FailOnListingError)
	assert.Equal(t, "sequential", cfg.Discipline)
	assert.Equal(t, "hiring", cfg.DefaultBucket)
	assert.NoError(t, cfg.Validate())

	assert.ErrorContains(t, setConfigValue(cfg, "retryCount", "many"), "retryCount must be an integer")
	assert.ErrorContains(t, setConfigValue(cfg, "colour", "red"), "Unknown configuration key: colour")

	require.NoError(t, setConfigValue(cfg, "backend", "ftp"))
	assert.Error(t, cfg.Validate())
}

func TestConfigView_CoversSettableKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, row := range (configView{cfg}).Rows() {
		assert.NoError(t, setConfigValue(config.DefaultConfig(), row[0], row[1]), row[0])
	}
}

func TestStateKeyFor(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, utils.StateKeyDrive, stateKeyFor("", cfg))
	assert.Equal(t, utils.StateKeyGCS, stateKeyFor("gcs", cfg))
	assert.Equal(t, utils.StateKeyS3, stateKeyFor("s3", cfg))
	assert.Equal(t, "custom_key", stateKeyFor("custom_key", cfg))
}

func TestReportListingRows(t *testing.T) {
	listing := &reportListing{Reports: []reportListEntry{{
		Key: "gcs_data", Source: utils.SourceGCS, FolderRef: "gs://bucket/" + strings.Repeat("x", 60),
		Parsed: 3, Failed: 1, CompletedAt: "now",
	}}}
	rows := listing.Rows()
	require.Len(t, rows, 1)
	assert.Len(t, rows[0][2], 40)
	assert.True(t, strings.HasSuffix(rows[0][2], "..."))
	assert.Equal(t, []string{"3", "1"}, rows[0][3:5])
}

func TestProgressPrinter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputWriter(types.OutputFormatTable, false, true).WithWriters(&stdout, &stderr)
	progress := progressPrinter(out)

	progress("cv.pdf", 512, 1024)
	progress("empty.txt", 0, 0)

	assert.Contains(t, stderr.String(), "cv.pdf: 512 B / 1.0 kB (50%)")
	assert.Contains(t, stderr.String(), "empty.txt: 0 B")
}

func TestApplyIngestFlags(t *testing.T) {
	defer func() { ingestFlags = ingestOptions{} }()

	ingestFlags.discipline = "parallel"
	ingestFlags.workers = 3
	ingestFlags.strict = true
	cfg := config.DefaultConfig()
	require.NoError(t, applyIngestFlags(cfg))
	assert.Equal(t, "parallel", cfg.Discipline)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
	assert.True(t, cfg.FailOnListingError)

	ingestFlags.discipline = "random"
	err := applyIngestFlags(config.DefaultConfig())
	assert.Equal(t, utils.ErrCodeInvalidArgument, utils.ErrorCode(err))
}
