package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edgecomet/telemetry/pkg/types"
)

// ErrorType classifies a recording failure
type ErrorType string

const (
	// ErrorTypeInvalidIdentifier means the id has no descriptor. Never recoverable.
	ErrorTypeInvalidIdentifier ErrorType = "invalid_identifier"
	// ErrorTypeInvalidExtraKey means an extra key is not declared for the event
	ErrorTypeInvalidExtraKey ErrorType = "invalid_extra_key"
)

var (
	ErrInvalidIdentifier = errors.New("invalid event identifier")
	ErrInvalidExtraKey   = errors.New("invalid extra key")
	ErrTableMismatch     = errors.New("event table does not match generated fingerprint")
)

// ErrorInfo is what a test error slot holds
type ErrorInfo struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// InvalidIdentifierError reports an id that the generated table does not know.
// The binary and its generated table are out of sync when this happens.
type InvalidIdentifierError struct {
	ID types.EventID
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("no event for id %d", e.ID)
}

func (e *InvalidIdentifierError) Unwrap() error { return ErrInvalidIdentifier }

// InvalidExtraKeyError lists the undeclared extra keys of a rejected recording
type InvalidExtraKeyError struct {
	Metric string
	Keys   []string
}

func (e *InvalidExtraKeyError) Error() string {
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return fmt.Sprintf("invalid extra key %s for %s", strings.Join(quoted, ", "), e.Metric)
}

func (e *InvalidExtraKeyError) Unwrap() error { return ErrInvalidExtraKey }

// errorInfoFrom converts a recording error into slot form
func errorInfoFrom(err error) ErrorInfo {
	switch {
	case errors.Is(err, ErrInvalidExtraKey):
		return ErrorInfo{Type: ErrorTypeInvalidExtraKey, Message: err.Error()}
	case errors.Is(err, ErrInvalidIdentifier):
		return ErrorInfo{Type: ErrorTypeInvalidIdentifier, Message: err.Error()}
	default:
		return ErrorInfo{Type: ErrorType("unknown"), Message: err.Error()}
	}
}
