package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents a page that could not be fetched after retries
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeInteraction represents render session query/click failures
	ErrorTypeInteraction ErrorType = "interaction"
	// ErrorTypeRobots represents robots.txt policy errors
	ErrorTypeRobots ErrorType = "robots"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents results database errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ErrBlockedByRobots is returned when robots.txt forbids crawling a URL.
var ErrBlockedByRobots = stderrors.New("blocked by robots.txt")

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type       ErrorType
	Target     string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Target, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Target, msg)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetch:
		return e.StatusCode == 0 || e.StatusCode >= 500
	case ErrorTypeRateLimit, ErrorTypeParsing, ErrorTypeRobots:
		return false
	default:
		return false
	}
}

// New creates a new CrawlerError
func New(errType ErrorType, target, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		Target:  target,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a FetchFailed error. statusCode is zero for transport failures.
func NewFetch(target string, statusCode int, err error) *CrawlerError {
	e := New(ErrorTypeFetch, target, "fetch failed", err)
	e.StatusCode = statusCode
	return e
}

// NewParsing creates a new parsing error
func NewParsing(target, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, target, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(target string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	e := New(ErrorTypeRateLimit, target, message, nil)
	e.StatusCode = 429
	return e
}

// NewInteraction creates an InteractionFailed error
func NewInteraction(target, message string, err error) *CrawlerError {
	return New(ErrorTypeInteraction, target, message, err)
}

// NewRobots wraps ErrBlockedByRobots for the given URL
func NewRobots(target string) *CrawlerError {
	return New(ErrorTypeRobots, target, "crawl not permitted", ErrBlockedByRobots)
}

// NewCache creates a new cache error
func NewCache(target, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, target, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(target, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, target, message, err)
}

// NewStorage creates a new storage error
func NewStorage(message string, err error) *CrawlerError {
	return New(ErrorTypeStorage, "", message, err)
}

// NewValidation creates a new validation error
func NewValidation(target, message string) *CrawlerError {
	return New(ErrorTypeValidation, target, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err is a CrawlerError of the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	var ce *CrawlerError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Type == errType
}

// IsFetchFailed reports whether err means a page could not be retrieved.
// Rate-limit refusals count as fetch failures.
func IsFetchFailed(err error) bool {
	return IsType(err, ErrorTypeFetch) || IsType(err, ErrorTypeRateLimit)
}

// IsInteractionFailed reports whether err came from a render session interaction.
func IsInteractionFailed(err error) bool {
	return IsType(err, ErrorTypeInteraction)
}
