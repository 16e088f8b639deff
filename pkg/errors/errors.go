package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeBrowser represents browser launch/teardown errors
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypeNavigation represents page navigation errors
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeForm represents date range / location interaction errors
	ErrorTypeForm ErrorType = "form"
	// ErrorTypeFilter represents price filter errors
	ErrorTypeFilter ErrorType = "filter"
	// ErrorTypeSubmit represents search submission errors
	ErrorTypeSubmit ErrorType = "submit"
	// ErrorTypeExtraction represents result card enumeration errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeSink represents sink errors
	ErrorTypeSink ErrorType = "sink"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a pipeline-stage error
type ScrapeError struct {
	Type    ErrorType
	Stage   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error aborts the whole scrape
func (e *ScrapeError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeBrowser, ErrorTypeNavigation, ErrorTypeForm:
		return true
	case ErrorTypeFilter, ErrorTypeSubmit, ErrorTypeExtraction:
		return false
	default:
		return false
	}
}

// IsFatal reports whether err carries a fatal ScrapeError anywhere in its chain
func IsFatal(err error) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsFatal()
	}
	return false
}

// TypeOf returns the ErrorType of the first ScrapeError in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// New creates a new ScrapeError
func New(errType ErrorType, stage, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Stage:   stage,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewBrowser creates a new browser error
func NewBrowser(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeBrowser, stage, message, err)
}

// NewNavigation creates a new navigation error
func NewNavigation(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, stage, message, err)
}

// NewForm creates a new form error
func NewForm(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeForm, stage, message, err)
}

// NewFilter creates a new filter error
func NewFilter(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeFilter, stage, message, err)
}

// NewSubmit creates a new submit error
func NewSubmit(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeSubmit, stage, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeExtraction, stage, message, err)
}

// NewSink creates a new sink error
func NewSink(sink, message string, err error) *ScrapeError {
	return New(ErrorTypeSink, sink, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "config", message, err)
}
