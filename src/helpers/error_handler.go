package helpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"bot-mirror/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SyncError struct {
	Message string
	Cause   error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As classification
type ConfigurationError struct{ SyncError }
type TransportError struct{ SyncError }
type ProtocolError struct{ SyncError }
type StorageError struct{ SyncError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{SyncError{Message: msg, Cause: cause}}
}

func NewTransportError(msg string, cause error) error {
	return &TransportError{SyncError{Message: msg, Cause: cause}}
}

func NewProtocolError(msg string, cause error) error {
	return &ProtocolError{SyncError{Message: msg, Cause: cause}}
}

func NewStorageError(msg string, cause error) error {
	return &StorageError{SyncError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------

// RequestError is a non-2xx answer from the control API. Detail carries the
// server's {detail} field, flattened to text when it is structured.
type RequestError struct {
	SyncError
	Status int
	Detail string
}

func NewRequestError(operation string, status int, detail string) *RequestError {
	return &RequestError{
		SyncError: SyncError{Message: fmt.Sprintf("%s failed", operation)},
		Status:    status,
		Detail:    detail,
	}
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, e.Detail)
}

// Retryable reports whether the request may succeed when repeated.
func (e *RequestError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// BackoffDelay returns min(maxDelay, baseDelay * 2^attempt).
func BackoffDelay(baseDelay, maxDelay time.Duration, attempt int) time.Duration {
	if baseDelay <= 0 {
		return 0
	}
	delay := baseDelay
	for i := 0; i < attempt; i++ {
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
		if delay > (1<<62)/2 {
			break
		}
		delay *= 2
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries+1 times
// with exponential backoff. shouldRetry decides whether an error is worth another attempt.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries || (shouldRetry != nil && !shouldRetry(err)) {
			break
		}

		delay := BackoffDelay(baseDelay, 0, attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger     *logger.Logger
	errorCount atomic.Int64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewNop("ErrorHandler")
	}
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int64 {
	return e.errorCount.Load()
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.errorCount.Store(0)
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.errorCount.Add(1)
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
