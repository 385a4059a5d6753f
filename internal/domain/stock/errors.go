package stock

import (
	"errors"
	"fmt"
	"strings"
)

// Retrieval error kinds. Every failure returned by a price source wraps exactly one.
var (
	ErrIO         = errors.New("io error")
	ErrParse      = errors.New("parse error")
	ErrNetwork    = errors.New("network error")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrDecode     = errors.New("decode error")
)

// Record errors
var (
	ErrEmptyTicker    = errors.New("empty ticker")
	ErrNegativeVolume = errors.New("negative volume")
)

// Repository errors
var (
	ErrDatabase = errors.New("database operation failed")
)

// RetrievalError carries the kind of a failed retrieval plus where it happened.
type RetrievalError struct {
	Kind       error  // one of ErrIO, ErrParse, ErrNetwork, ErrHTTPStatus, ErrDecode
	Op         string // load, fetch
	Source     string // file path or URL
	Line       int    // 1-based line number, parse errors only
	StatusCode int    // http status errors only
	Err        error
}

func (e *RetrievalError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Source != "" {
			b.WriteString(" ")
			b.WriteString(e.Source)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *RetrievalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewIOError reports a missing or unreadable file.
func NewIOError(source string, err error) *RetrievalError {
	return &RetrievalError{Kind: ErrIO, Op: "load", Source: source, Err: err}
}

// NewParseError reports a malformed data line.
func NewParseError(source string, line int, err error) *RetrievalError {
	return &RetrievalError{Kind: ErrParse, Op: "load", Source: source, Line: line, Err: err}
}

// NewNetworkError reports a connection failure or timeout.
func NewNetworkError(source string, err error) *RetrievalError {
	return &RetrievalError{Kind: ErrNetwork, Op: "fetch", Source: source, Err: err}
}

// NewHTTPStatusError reports a non-2xx response.
func NewHTTPStatusError(source string, statusCode int) *RetrievalError {
	return &RetrievalError{Kind: ErrHTTPStatus, Op: "fetch", Source: source, StatusCode: statusCode}
}

// NewDecodeError reports a malformed response body.
func NewDecodeError(source string, err error) *RetrievalError {
	return &RetrievalError{Kind: ErrDecode, Op: "fetch", Source: source, Err: err}
}

// KindOf returns the kind sentinel wrapped by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrIO, ErrParse, ErrNetwork, ErrHTTPStatus, ErrDecode} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsParseError checks if the error came from malformed input data
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrDecode)
}

// IsTransportError checks if the error came from the network or the remote service
func IsTransportError(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrHTTPStatus)
}
