package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeMissingField represents a required element absent from the markup
	ErrorTypeMissingField ErrorType = "missing_field"
	// ErrorTypeFieldParsing represents an element whose text has an unexpected shape
	ErrorTypeFieldParsing ErrorType = "field_parsing"
	// ErrorTypeTransport represents network-related errors
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents database errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Field parsing kinds
const (
	KindPriceParsing        = "PriceParsingError"
	KindTimeParsing         = "TimeParsingError"
	KindDateParsing         = "DateParsingError"
	KindLocationDateParsing = "LocationDateParsingError"
	KindListingGridNotFound = "ListingGridNotFound"
	KindDocumentParsing     = "DocumentParsingError"
)

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type ErrorType
	// Kind narrows field_parsing errors, e.g. "PriceParsingError"
	Kind     string
	Provider string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	label := string(e.Type)
	if e.Kind != "" {
		label = e.Kind
	}

	prefix := fmt.Sprintf("[%s]", label)
	if e.Provider != "" {
		prefix += " " + e.Provider + ":"
	}

	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *CrawlerError) IsRetryable() bool {
	return e.Type == ErrorTypeTransport
}

// New creates a new CrawlerError
func New(errType ErrorType, provider, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewMissingField creates an error for an element that is not in the markup
func NewMissingField(message string) *CrawlerError {
	return New(ErrorTypeMissingField, "", message, nil)
}

// NewFieldParsing creates an error for text that does not match the expected shape
func NewFieldParsing(kind, message string) *CrawlerError {
	e := New(ErrorTypeFieldParsing, "", message, nil)
	e.Kind = kind
	return e
}

// NewTransport creates a new network error
func NewTransport(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeTransport, provider, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(provider string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewCache creates a new cache error
func NewCache(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, provider, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(provider, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, provider, message, err)
}

// NewStorage creates a new storage error
func NewStorage(message string, err error) *CrawlerError {
	return New(ErrorTypeStorage, "postgres", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err wraps a CrawlerError of the given type
func IsType(err error, errType ErrorType) bool {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Type == errType
	}
	return false
}

// IsRetryable reports whether err wraps a CrawlerError worth retrying
func IsRetryable(err error) bool {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

// KindOf returns the Kind of the first CrawlerError in err's chain
func KindOf(err error) string {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
