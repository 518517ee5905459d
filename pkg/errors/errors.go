package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures met while acquiring an artwork
type Kind string

const (
	// KindTransient covers network failures, timeouts and 5xx/429 responses.
	// The candidate is skipped and nothing is written to the ledger.
	KindTransient Kind = "transient"
	// KindNotAnImage means the payload could not be decoded as an image
	KindNotAnImage Kind = "not_an_image"
	// KindNoImage means the item has no image reference at all
	KindNoImage Kind = "no_image"
	// KindCredentials means the adapter cannot run without an API key
	KindCredentials Kind = "credentials"
	// KindPermanent covers 4xx responses and malformed payloads
	KindPermanent Kind = "permanent"
	// KindAdapterExhausted is returned by a session that spent its budget
	KindAdapterExhausted Kind = "adapter_exhausted"
	// KindEngineExhausted is returned when every adapter failed
	KindEngineExhausted Kind = "engine_exhausted"
	// KindOfflineExhausted means no local image satisfies the request
	KindOfflineExhausted Kind = "offline_exhausted"
	// KindPersistence means a decision or image could not be written locally.
	// It stops the whole run.
	KindPersistence Kind = "persistence"
)

// Error carries a Kind together with the source that produced it
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Source != "" {
		if e.Code != 0 {
			return fmt.Sprintf("%s: %s error (code %d): %s", e.Source, e.Kind, e.Code, msg)
		}
		return fmt.Sprintf("%s: %s error: %s", e.Source, e.Kind, msg)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind
func New(kind Kind, source, message string) *Error {
	return &Error{Kind: kind, Source: source, Message: message}
}

// Wrap creates an Error of the given kind around err
func Wrap(kind Kind, source string, err error, message string) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether err should be treated as a skip-and-continue failure
func IsTransient(err error) bool {
	return Is(err, KindTransient)
}

// IsRetryable checks if an error kind may succeed on a repeated request
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindTransient:
		return true
	default:
		return false
	}
}

// KindForStatus maps an HTTP status code onto an error kind.
// 0 means the request never got a response.
func KindForStatus(statusCode int) Kind {
	switch {
	case statusCode == 0:
		return KindTransient
	case statusCode == http.StatusTooManyRequests:
		return KindTransient
	case statusCode == http.StatusRequestTimeout:
		return KindTransient
	case statusCode >= 500:
		return KindTransient
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return KindCredentials
	default:
		return KindPermanent
	}
}

// FromStatus builds an Error for an unexpected HTTP status
func FromStatus(source string, statusCode int) *Error {
	return &Error{
		Kind:    KindForStatus(statusCode),
		Source:  source,
		Message: fmt.Sprintf("unexpected status code: %d", statusCode),
		Code:    statusCode,
	}
}
