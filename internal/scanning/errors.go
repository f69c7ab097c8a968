package scanning

import (
	"errors"
	"net/http"
)

// Kind is the client-facing category of an extraction failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNoFileProvided
	KindInvalidFileType
	KindFileTooLarge
	KindMissingCredentials
	KindQuotaExceeded
	KindInvalidCredentials
	KindEmptyModelResponse
	KindUnparsableResponse
)

// Kinds lists every failure kind.
var Kinds = []Kind{
	KindNoFileProvided,
	KindInvalidFileType,
	KindFileTooLarge,
	KindMissingCredentials,
	KindQuotaExceeded,
	KindInvalidCredentials,
	KindEmptyModelResponse,
	KindUnparsableResponse,
	KindInternal,
}

// Class groups kinds by who is responsible for the failure.
type Class string

const (
	ClassClient   Class = "client"
	ClassProvider Class = "provider"
	ClassParse    Class = "parse"
	ClassInternal Class = "internal"
)

func (k Kind) String() string {
	switch k {
	case KindNoFileProvided:
		return "NoFileProvided"
	case KindInvalidFileType:
		return "InvalidFileType"
	case KindFileTooLarge:
		return "FileTooLarge"
	case KindMissingCredentials:
		return "MissingCredentials"
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindEmptyModelResponse:
		return "EmptyModelResponse"
	case KindUnparsableResponse:
		return "UnparsableResponse"
	default:
		return "InternalError"
	}
}

// Status returns the HTTP status code reported for the kind.
func (k Kind) Status() int {
	switch k {
	case KindNoFileProvided, KindInvalidFileType, KindFileTooLarge:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusPaymentRequired
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the default human-readable message for the kind.
func (k Kind) Message() string {
	switch k {
	case KindNoFileProvided:
		return "No file uploaded"
	case KindInvalidFileType:
		return "Invalid file type. Only JPG, PNG, GIF, and WebP are allowed."
	case KindFileTooLarge:
		return "File too large. Maximum size is 20MB."
	case KindMissingCredentials:
		return "API key not configured"
	case KindQuotaExceeded:
		return "API quota exceeded. Please check your billing."
	case KindInvalidCredentials:
		return "Invalid API key"
	case KindEmptyModelResponse:
		return "Empty response from vision model"
	case KindUnparsableResponse:
		return "Failed to parse receipt data"
	default:
		return "Failed to extract receipt data"
	}
}

// Class returns the propagation class of the kind.
func (k Kind) Class() Class {
	switch k {
	case KindNoFileProvided, KindInvalidFileType, KindFileTooLarge:
		return ClassClient
	case KindMissingCredentials, KindQuotaExceeded, KindInvalidCredentials, KindEmptyModelResponse:
		return ClassProvider
	case KindUnparsableResponse:
		return ClassParse
	default:
		return ClassInternal
	}
}

// Error is an extraction failure tagged with its Kind.
type Error struct {
	Kind    Kind
	Message string // optional override of Kind.Message
	Err     error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	msg := e.PublicMessage()
	if e.Err != nil {
		return e.Kind.String() + ": " + msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// PublicMessage is the message safe to show to API clients. Internal errors
// never leak their cause.
func (e *Error) PublicMessage() string {
	if e.Kind == KindInternal || e.Message == "" {
		return e.Kind.Message()
	}
	return e.Message
}

// Classify converts any error into an *Error. Errors that are not already
// classified become KindInternal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return newError(KindInternal, err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
