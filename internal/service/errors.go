package service

import (
	"errors"
	"fmt"

	"domore/internal/repository"
)

const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeProfileNotFound = "PROFILE_NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeStore           = "STORE_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error { return b.Err }

func ToDetail(key string, payload any) Detail {
	return Detail{Key: key, Payload: payload}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

func NewNotFound(resource string, id int64) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("%s %d not found", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id))
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("invalid value for '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason))
}

// toBusinessError maps repository failures onto business codes. Errors it
// does not recognise are returned unchanged.
func toBusinessError(err error, taskID int64) error {
	if err == nil {
		return nil
	}

	var busErr *BusinessError
	if errors.As(err, &busErr) {
		return busErr
	}

	var validation *repository.ValidationError
	var storeErr *repository.StoreError
	switch {
	case errors.Is(err, repository.ErrUnauthenticated):
		e := NewBusinessError(CodeUnauthenticated, "authentication required")
		e.Err = err
		return e
	case errors.Is(err, repository.ErrProfileNotFound):
		e := NewBusinessError(CodeProfileNotFound, "user profile not found")
		e.Err = err
		return e
	case errors.As(err, &validation):
		return NewValidationError(validation.Field, validation.Reason)
	case errors.Is(err, repository.ErrNotFound):
		return NewNotFound("task", taskID)
	case errors.As(err, &storeErr):
		e := NewBusinessError(CodeStore, "task store request failed", ToDetail("operation", storeErr.Op))
		e.Err = storeErr.Err
		return e
	}
	return err
}
