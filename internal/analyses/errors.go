package analyses

import (
	"context"
	"errors"

	"github.com/Bill1907/prepup/internal/extract"
	"github.com/Bill1907/prepup/internal/feedback"
	"github.com/Bill1907/prepup/internal/llm"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("analysis belongs to another user")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
	ErrNothingToAnalyze      = errors.New("resume has neither a file nor content")
)

const (
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// stageError tags a failure with the code of the step that produced it.
type stageError struct {
	code string
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func storageErr(err error) error    { return &stageError{code: ErrorCodeStorage, err: err} }
func validationErr(err error) error { return &stageError{code: ErrorCodeValidation, err: err} }

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	var stage *stageError
	if errors.As(err, &stage) {
		return stage.code
	}
	if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout
	}
	if errors.Is(err, feedback.ErrInvalid) || errors.Is(err, llm.ErrInvalidJSON) {
		return ErrorCodeLLMSchemaMismatch
	}
	if errors.Is(err, extract.ErrEmptyText) || errors.Is(err, ErrNothingToAnalyze) {
		return ErrorCodeValidation
	}
	return ErrorCodeInternal
}
