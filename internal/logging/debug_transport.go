package logging

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// DebugTransport logs every backend HTTP round trip at DEBUG level
type DebugTransport struct {
	base   http.RoundTripper
	logger Logger
}

// NewDebugTransport wraps base; a nil base uses http.DefaultTransport
func NewDebugTransport(base http.RoundTripper, logger Logger) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &DebugTransport{base: base, logger: logger}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := t.logger.WithContext(req.Context())

	resp, err := t.base.RoundTrip(req)
	fields := []Field{
		F("method", req.Method),
		F("url", RedactSensitive(req.URL.String())),
		F("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		logger.Debug("HTTP request failed", append(fields, F("error", err.Error()))...)
		return nil, err
	}

	fields = append(fields, F("status", resp.StatusCode))
	if resp.ContentLength >= 0 {
		fields = append(fields, F("size", humanize.Bytes(uint64(resp.ContentLength))))
	}
	logger.Debug("HTTP request", fields...)
	return resp, nil
}
