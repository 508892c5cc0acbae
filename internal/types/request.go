package types

// RequestType identifies the kind of backend call being made
type RequestType string

const (
	RequestTypeList     RequestType = "list"
	RequestTypeDownload RequestType = "download"
	RequestTypeAuth     RequestType = "auth"
)

// RequestContext carries tracing data for a backend call
type RequestContext struct {
	Backend         string      `json:"backend"`
	FolderRef       string      `json:"folderRef,omitempty"`
	InvolvedFileIDs []string    `json:"involvedFileIds,omitempty"`
	RequestType     RequestType `json:"requestType"`
	TraceID         string      `json:"traceId"`
}
