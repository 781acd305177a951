package service

import (
	"fmt"
	"net/http"

	"nextsteps-go/internal/models"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindMisconfigured     ErrorKind = "misconfigured"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUpstreamRejected  ErrorKind = "upstream_rejected"
	KindTransport         ErrorKind = "transport"
)

const (
	msgConfiguration   = "Server configuration error"
	msgInvalidResponse = "Invalid response from MailerLite"
	msgUpstreamFailed  = "Failed to add subscriber to MailerLite"
	msgInternal        = "Internal server error"
)

// UpsertError is a failed upsert, carrying the HTTP status and JSON body the
// endpoint responds with.
type UpsertError struct {
	Kind       ErrorKind
	StatusCode int
	Text       string
	Details    interface{}
	Message    string
	Err        error
}

func (e *UpsertError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Text, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}

func (e *UpsertError) Unwrap() error {
	return e.Err
}

func (e *UpsertError) Response() models.ErrorResponse {
	return models.ErrorResponse{
		Error:   e.Text,
		Details: e.Details,
		Message: e.Message,
	}
}

func validationError(err error) *UpsertError {
	return &UpsertError{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Text:       models.EmailErrorMessage(err),
		Err:        err,
	}
}

func misconfiguredError() *UpsertError {
	return &UpsertError{
		Kind:       KindMisconfigured,
		StatusCode: http.StatusInternalServerError,
		Text:       msgConfiguration,
	}
}

func malformedResponseError(resp *models.UpstreamResponse) *UpsertError {
	return &UpsertError{
		Kind:       KindMalformedResponse,
		StatusCode: http.StatusInternalServerError,
		Text:       msgInvalidResponse,
		Details:    string(resp.Body),
	}
}

func upstreamRejectedError(resp *models.UpstreamResponse, details interface{}) *UpsertError {
	return &UpsertError{
		Kind:       KindUpstreamRejected,
		StatusCode: resp.StatusCode,
		Text:       msgUpstreamFailed,
		Details:    details,
	}
}

func transportError(err error) *UpsertError {
	return &UpsertError{
		Kind:       KindTransport,
		StatusCode: http.StatusInternalServerError,
		Text:       msgInternal,
		Message:    err.Error(),
		Err:        err,
	}
}
