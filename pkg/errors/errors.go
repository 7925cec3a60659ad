package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeAdapter represents a site adapter that failed or returned no data
	ErrorTypeAdapter ErrorType = "adapter"
	// ErrorTypeTranslation represents a failed translation chunk
	ErrorTypeTranslation ErrorType = "translation"
	// ErrorTypePersistence represents a failed document write
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeSweep represents a failed retention sweep
	ErrorTypeSweep ErrorType = "sweep"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError represents an ingestion pipeline error
type PipelineError struct {
	Type    ErrorType
	Site    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Site, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Site, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeSweep:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, site, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Site:    site,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewAdapter creates a new adapter error
func NewAdapter(site, message string, err error) *PipelineError {
	return New(ErrorTypeAdapter, site, message, err)
}

// NewTranslation creates a new translation chunk error
func NewTranslation(site, message string, err error) *PipelineError {
	return New(ErrorTypeTranslation, site, message, err)
}

// NewPersistence creates a new persistence write error
func NewPersistence(site, message string, err error) *PipelineError {
	return New(ErrorTypePersistence, site, message, err)
}

// NewSweep creates a new retention sweep error
func NewSweep(message string, err error) *PipelineError {
	return New(ErrorTypeSweep, "", message, err)
}

// NewNetwork creates a new network error
func NewNetwork(site, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, site, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(site string, duration time.Duration) *PipelineError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, site, message, nil)
}

// NewCache creates a new cache error
func NewCache(site, message string, err error) *PipelineError {
	return New(ErrorTypeCache, site, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(message string, err error) *PipelineError {
	return New(ErrorTypePublisher, "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err is a PipelineError of the given type
func IsType(err error, errType ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == errType
	}
	return false
}
