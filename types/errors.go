package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a pipeline failure.
type ErrorCode string

const (
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParseFailure      ErrorCode = "PARSE_FAILURE"
	ErrCodeEmbedding         ErrorCode = "EMBEDDING_SERVICE"
	ErrCodeStorage           ErrorCode = "STORAGE"
	ErrCodeValidation        ErrorCode = "VALIDATION"
)

// PipelineError is a classified failure of one pipeline stage. A missing
// search result is never a PipelineError: queries that match nothing return
// empty results.
type PipelineError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Code, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same submission
// unchanged and expect a different outcome.
func (e *PipelineError) Retryable() bool {
	return e.Code == ErrCodeEmbedding
}

func NewUnsupportedFormat(contentType string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeUnsupportedFormat,
		Stage:   "processor",
		Message: fmt.Sprintf("content type %q is not supported", contentType),
	}
}

func NewParseFailure(contentType string, err error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeParseFailure,
		Stage:   "processor",
		Message: fmt.Sprintf("extraction failed for %q", contentType),
		Err:     err,
	}
}

func NewEmbeddingError(stage string, err error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeEmbedding,
		Stage:   stage,
		Message: "embedding service unavailable",
		Err:     err,
	}
}

func NewStorageError(stage string, err error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeStorage,
		Stage:   stage,
		Message: "storage operation failed",
		Err:     err,
	}
}

func NewValidationFailure(stage, msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeValidation, Stage: stage, Message: msg}
}

// AsPipelineError unwraps err to a PipelineError if one is in the chain.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
