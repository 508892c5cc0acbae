package types

// OutputFormat selects how CLI results are printed
type OutputFormat string

const (
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// GlobalFlags holds flags shared by every command
type GlobalFlags struct {
	OutputFormat OutputFormat
	Quiet        bool
	Verbose      bool
	Debug        bool
	LogFile      string
	ConfigDir    string
	JSON         bool
}

// CLIError is the stable, machine-readable error shape
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"httpStatus,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// CLIWarning is a non-fatal notice attached to command output
type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// CLIOutput is the JSON envelope for every command
type CLIOutput struct {
	SchemaVersion string       `json:"schemaVersion"`
	TraceID       string       `json:"traceId"`
	Command       string       `json:"command"`
	Data          interface{}  `json:"data"`
	Warnings      []CLIWarning `json:"warnings"`
	Errors        []CLIError   `json:"errors"`
}

type TableRenderer interface {
	Headers() []string
	Rows() [][]string
	EmptyMessage() string
}

type TableRenderable interface {
	AsTableRenderer() TableRenderer
}
