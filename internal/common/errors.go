package common

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/order-transformer/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Document conversion failures. Match with errors.Is.
var (
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrDecode               = errors.New("no encoding candidate decoded the content")
	ErrEmptyText            = errors.New("document has no extractable text")
	ErrNoLineItemsFound     = errors.New("no line items found")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnresolvedIdentifier = errors.New("every line item is unresolved")
	ErrCancelled            = errors.New("document processing cancelled")
)

// StrategyAttempt is one strategy that ran during extraction and why it declined.
type StrategyAttempt struct {
	Field    string
	Strategy string
	Reason   string
}

func (a StrategyAttempt) String() string {
	return fmt.Sprintf("%s/%s: %s", a.Field, a.Strategy, a.Reason)
}

// Failure is a per-document conversion error. Kind is one of the Err* sentinels above.
type Failure struct {
	Kind       error
	DocumentID string
	Document   string
	Stage      constants.Stage
	Detail     string
	Attempts   []StrategyAttempt
	Cause      error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Stage))
	if f.Document != "" {
		b.WriteString(" ")
		b.WriteString(f.Document)
	}
	b.WriteString(": ")
	b.WriteString(f.Kind.Error())
	if f.Detail != "" {
		b.WriteString(": ")
		b.WriteString(f.Detail)
	}
	if f.Cause != nil {
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	if len(f.Attempts) > 0 {
		b.WriteString(" (attempts: ")
		for i, a := range f.Attempts {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(a.String())
		}
		b.WriteString(")")
	}
	return b.String()
}

func (f *Failure) Is(target error) bool {
	return target == f.Kind
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// ForDocument stamps identity on failures raised below the pipeline.
func (f *Failure) ForDocument(id, name string) *Failure {
	if f.DocumentID == "" {
		f.DocumentID = id
	}
	if f.Document == "" {
		f.Document = name
	}
	return f
}

// AsFailure unwraps err into a *Failure when it carries one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func NewUnsupportedFormatError(format string) *Failure {
	return &Failure{Kind: ErrUnsupportedFormat, Stage: constants.StageRead, Detail: fmt.Sprintf("%q", format)}
}

func NewDecodeError(tried []string, cause error) *Failure {
	return &Failure{Kind: ErrDecode, Stage: constants.StageRead, Detail: "tried " + strings.Join(tried, ", "), Cause: cause}
}

func NewEmptyTextError(attempts []StrategyAttempt) *Failure {
	return &Failure{Kind: ErrEmptyText, Stage: constants.StageRead, Attempts: attempts}
}

func NewNoLineItemsFoundError(attempts []StrategyAttempt) *Failure {
	return &Failure{Kind: ErrNoLineItemsFound, Stage: constants.StageExtract, Attempts: attempts}
}

func NewMissingRequiredFieldError(field string, stage constants.Stage, attempts []StrategyAttempt) *Failure {
	return &Failure{Kind: ErrMissingRequiredField, Stage: stage, Detail: field, Attempts: attempts}
}

func NewUnresolvedIdentifierError(orderNumber string, unresolved int) *Failure {
	return &Failure{
		Kind:   ErrUnresolvedIdentifier,
		Stage:  constants.StageNormalize,
		Detail: fmt.Sprintf("order %s has %d unmapped items", orderNumber, unresolved),
	}
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// GRPCStatus maps conversion failures onto status codes.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrDecode), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrNoLineItemsFound),
		errors.Is(err, ErrMissingRequiredField), errors.Is(err, ErrUnresolvedIdentifier):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrCancelled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
