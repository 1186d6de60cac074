package app

import (
	"errors"
	"fmt"
	"net/http"

	"sra/api/internal/auth"
	"sra/api/internal/authpw"
	"sra/api/internal/export"
	"sra/api/internal/history"
	"sra/api/internal/lock"
	"sra/api/internal/questionnaire"
	"sra/api/internal/store"
	"sra/api/internal/workflow"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeThreadClosed      = "THREAD_CLOSED"
	CodeAlreadyResolved   = "ALREADY_RESOLVED"
	CodeConflict          = "CONFLICT"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, CodeValidation, message, details)
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, CodeForbidden, message, nil)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, CodeNotFound, message, nil)
}

// translate turns sentinel errors from the domain packages into DomainErrors.
// Anything it does not recognise is returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		return domainError(http.StatusConflict, CodeInvalidTransition, err.Error(), nil)
	case errors.Is(err, workflow.ErrNotADecision), errors.Is(err, workflow.ErrUnknownStatus):
		return validationError(err.Error(), nil)
	case errors.Is(err, workflow.ErrThreadClosed):
		return domainError(http.StatusConflict, CodeThreadClosed, "Thread is resolved", nil)
	case errors.Is(err, workflow.ErrAlreadyResolved):
		return domainError(http.StatusConflict, CodeAlreadyResolved, "Thread already resolved", nil)
	case errors.Is(err, workflow.ErrOpenThreadExists):
		return domainError(http.StatusConflict, CodeConflict, "An open thread already exists for this question", nil)
	case errors.Is(err, lock.ErrLockTimeout):
		return domainError(http.StatusConflict, CodeConflict, "assessment is busy", nil)
	case errors.Is(err, store.ErrConflict):
		return domainError(http.StatusConflict, CodeConflict, "Conflict", nil)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return notFound("Not found")
	case errors.Is(err, questionnaire.ErrKindMismatch):
		return validationError(err.Error(), nil)
	case errors.Is(err, authpw.ErrEmailTaken):
		return domainError(http.StatusConflict, CodeConflict, "Email taken", nil)
	case errors.Is(err, authpw.ErrInvalidInput):
		return validationError(err.Error(), nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, CodeUnauthorized, "Invalid email or password", nil)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return domainError(http.StatusUnauthorized, CodeUnauthorized, "Unauthorized", nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return validationError("format must be html or pdf", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	}
	return err
}
