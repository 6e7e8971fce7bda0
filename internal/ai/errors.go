package ai

import (
	"fmt"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/sashabaranov/go-openai"
	"net/http"
)

// ErrNotConfigured means the API key is missing and no request was attempted.
var ErrNotConfigured = errors.NewSentinel("OpenAI API key not configured")

type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindQuota          Kind = "quota"
	KindRemote         Kind = "remote"
	KindNetwork        Kind = "network"
	KindEmpty          Kind = "empty"
)

// Error describes a failed analysis request.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(err error) *Error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
		status int
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return &Error{Kind: KindNetwork, StatusCode: 0, Err: err}
	}

	kind := KindRemote
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuthentication
	case http.StatusTooManyRequests:
		kind = KindQuota
	}
	return &Error{Kind: kind, StatusCode: status, Err: err}
}
