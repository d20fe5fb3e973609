package app

import (
	"errors"
	"fmt"
	"net/http"

	"civicvoice/internal/validation"
)

type Kind string

const (
	KindValidation              Kind = "ValidationError"
	KindAuthenticationRequired  Kind = "AuthenticationRequired"
	KindPermissionDenied        Kind = "PermissionDenied"
	KindNotFound                Kind = "NotFound"
	KindConflict                Kind = "Conflict"
	KindSentimentAnalysisFailed Kind = "SentimentAnalysisFailed"
	KindPersistenceDenied       Kind = "PersistenceDenied"
	KindAttachmentFailed        Kind = "AttachmentFailed"
	KindStorageUnavailable      Kind = "StorageUnavailable"
	KindAuthUnavailable         Kind = "AuthUnavailable"
)

// DomainError is the only error shape that crosses the HTTP boundary. The
// wrapped cause is kept for logs and errors.Is, never for the response body.
type DomainError struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches on Kind so errors.Is(err, ErrPermissionDenied) works for any
// permission failure regardless of message.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind != "" && other.Kind == e.Kind
}

var (
	ErrValidation              = &DomainError{Kind: KindValidation}
	ErrAuthenticationRequired  = &DomainError{Kind: KindAuthenticationRequired}
	ErrPermissionDenied        = &DomainError{Kind: KindPermissionDenied}
	ErrNotFound                = &DomainError{Kind: KindNotFound}
	ErrConflict                = &DomainError{Kind: KindConflict}
	ErrSentimentAnalysisFailed = &DomainError{Kind: KindSentimentAnalysisFailed}
	ErrPersistenceDenied       = &DomainError{Kind: KindPersistenceDenied}
	ErrAttachmentFailed        = &DomainError{Kind: KindAttachmentFailed}
	ErrStorageUnavailable      = &DomainError{Kind: KindStorageUnavailable}
	ErrAuthUnavailable         = &DomainError{Kind: KindAuthUnavailable}
)

func domainError(kind Kind, status int, code, message string, details any, cause error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
		cause:   cause,
	}
}

// validationFailed turns validation.Errors into field details; any other
// error becomes a single "request" entry.
func validationFailed(err error) *DomainError {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		fields = validation.Errors{"request": err.Error()}
	}
	return domainError(KindValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string(fields), nil)
}

func fieldInvalid(field, message string) *DomainError {
	return validationFailed(validation.Errors{field: message})
}

func authenticationRequired() *DomainError {
	return domainError(KindAuthenticationRequired, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Sign in to continue", nil, nil)
}

func permissionDenied(message string) *DomainError {
	return domainError(KindPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED", message, nil, nil)
}

func notFound(message string) *DomainError {
	return domainError(KindNotFound, http.StatusNotFound, "NOT_FOUND", message, nil, nil)
}

func conflict(message string, details any) *DomainError {
	return domainError(KindConflict, http.StatusConflict, "CONFLICT", message, details, nil)
}

func sentimentFailed(cause error) *DomainError {
	return domainError(KindSentimentAnalysisFailed, http.StatusBadGateway, "SENTIMENT_ANALYSIS_FAILED", "Sentiment analysis failed; your feedback was not saved", nil, cause)
}

func persistenceDenied(cause error) *DomainError {
	return domainError(KindPersistenceDenied, http.StatusServiceUnavailable, "PERSISTENCE_DENIED", "The record could not be saved", nil, cause)
}

func attachmentFailed(cause error) *DomainError {
	return domainError(KindAttachmentFailed, http.StatusBadGateway, "ATTACHMENT_FAILED", "The attachment could not be stored", nil, cause)
}

func storageUnavailable(cause error) *DomainError {
	return domainError(KindStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable", nil, cause)
}

func authUnavailable() *DomainError {
	return domainError(KindAuthUnavailable, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil, nil)
}
