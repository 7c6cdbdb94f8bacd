// Package validator provides input validation for record ingest requests.
// It enforces path and field constraints and returns per-field error
// details.
package validator

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordingest"
)

const (
	maxPathLength  = 1024
	maxFieldCount  = 256
	maxIdempotency = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks that the path and fields of the request meet
// the required constraints and returns a ValidationError if not.
func ValidateIngestRequest(req *recordingest.IngestRequest) error {
	errs := make(map[string]string)

	path := strings.TrimSpace(req.Path)
	if path == "" {
		errs["path"] = "path is required"
	} else if !strings.HasPrefix(path, "/") {
		errs["path"] = "path must be absolute (start with /)"
	} else if len(path) > maxPathLength {
		errs["path"] = fmt.Sprintf("path must be at most %d characters", maxPathLength)
	}
	if len(req.Fields) > maxFieldCount {
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFieldCount)
	}
	if req.IdempotencyKey != "" && len(req.IdempotencyKey) > maxIdempotency {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotency)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
