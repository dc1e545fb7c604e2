package models

import (
	"errors"
	"fmt"
)

var (
	// ErrParseFormat means the payload matched neither the JSON nor the markup shape.
	ErrParseFormat = errors.New("payload format not recognised")

	// ErrNoUsableData means the payload parsed but no record survived validation.
	ErrNoUsableData = errors.New("no usable data")

	// ErrPersistenceWrite means the store rejected a snapshot.
	ErrPersistenceWrite = errors.New("persistence write failed")
)

// NetworkError is a transport failure talking to the feed.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// VerifyMismatchError means a write reported success but reading it back disagreed.
type VerifyMismatchError struct {
	ExpectedUnits int
	ActualUnits   int
	Err           error
}

func (e *VerifyMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persisted but unverifiable: read back failed: %v", e.Err)
	}
	return fmt.Sprintf("persisted but unverifiable: wrote %d units, read back %d",
		e.ExpectedUnits, e.ActualUnits)
}

func (e *VerifyMismatchError) Unwrap() error { return e.Err }

// Error kinds reported in status and metrics.
const (
	KindNetwork          = "network"
	KindParseFormat      = "parse_format"
	KindNoUsableData     = "no_usable_data"
	KindPersistenceWrite = "persistence_write"
	KindVerifyMismatch   = "verify_mismatch"
	KindUnknown          = "unknown"
)

// ErrorKind classifies err into one of the Kind constants. nil yields "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var netErr *NetworkError
	var verifyErr *VerifyMismatchError
	switch {
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &verifyErr):
		return KindVerifyMismatch
	case errors.Is(err, ErrParseFormat):
		return KindParseFormat
	case errors.Is(err, ErrNoUsableData):
		return KindNoUsableData
	case errors.Is(err, ErrPersistenceWrite):
		return KindPersistenceWrite
	default:
		return KindUnknown
	}
}
