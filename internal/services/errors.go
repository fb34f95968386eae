package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrQuotaExceeded      = errors.New("daily quota exceeded")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrProvisioningFailed = errors.New("provisioning failed")
	ErrPortResolution     = errors.New("port binding missing after start")
	ErrAgentNotFound      = errors.New("agent not found")
)

// ValidationError reports a rejected request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
