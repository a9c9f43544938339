package exporter

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an export failure
type ErrorKind string

const (
	// KindNetwork means the request could not be sent or the response was non-2xx
	KindNetwork ErrorKind = "network"
	// KindPersistence means the endpoint answered but the store rejected the write
	KindPersistence ErrorKind = "persistence"
)

var (
	// ErrInvalidRating is returned for ratings outside 0-4 or mismatched labels
	ErrInvalidRating = errors.New("invalid rating")
	// ErrAlreadyExported is returned when a session's transcript was already exported
	ErrAlreadyExported = errors.New("session transcript already exported")
)

// ExportError is returned by the exporters when delivery fails
type ExportError struct {
	Kind       ErrorKind
	Route      string
	StatusCode int    // zero when no response was received
	Message    string // server supplied error text, if any
	Body       string
	Err        error
}

func (e *ExportError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("export to %s failed: %v", e.Route, e.Err)
	case e.Message != "":
		return fmt.Sprintf("export to %s failed: HTTP error! status: %d: %s", e.Route, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("export to %s failed: HTTP error! status: %d", e.Route, e.StatusCode)
	}
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from an export error, or 0
func StatusCode(err error) int {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.StatusCode
	}
	return 0
}

// IsPersistence reports whether err means the store rejected the write
func IsPersistence(err error) bool {
	var exportErr *ExportError
	return errors.As(err, &exportErr) && exportErr.Kind == KindPersistence
}
