package pipeline

import (
	"fmt"
	"net/http"
	"time"

	"ultrapay-backend/internal/payment"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindUnsupportedProvider Kind = "unsupported_provider"
	KindPaymentRejected     Kind = "payment_rejected"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRateLimited Kind = "upstream_rate_limited"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal_error"
)

type Stage string

const (
	StageValidate  Stage = "validate"
	StageAuthorize Stage = "authorize"
	StageGenerate  Stage = "generate"
	StageStore     Stage = "store"
	StageRecord    Stage = "record"
)

// Error is a pipeline failure. Message is safe to show callers; Err holds
// the internal cause and is only exposed in development.
type Error struct {
	Kind       Kind
	Stage      Stage
	Message    string
	Context    map[string]any
	Challenge  *payment.Challenge
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindUnsupportedProvider:
		return http.StatusBadRequest
	case KindPaymentRejected:
		return http.StatusPaymentRequired
	case KindUpstreamUnavailable, KindUpstreamRateLimited, KindStorageUnavailable:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func validationError(message string, context map[string]any) *Error {
	return &Error{Kind: KindValidation, Stage: StageValidate, Message: message, Context: context}
}
