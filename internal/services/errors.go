package services

import (
	"errors"
	"fmt"
)

// ErrMissingToken is returned when the enrichment job is started without a GitHub token
var ErrMissingToken = errors.New("GITHUB_TOKEN environment variable not set")

// ErrMalformedResponse is returned when a GraphQL response lacks the expected nodes
var ErrMalformedResponse = errors.New("malformed GraphQL response")

// TransportError is a fatal failure of the GitHub API: a non-200 status, or a
// rate limit that outlasted every retry. It aborts the enrichment run.
type TransportError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GitHub API request failed with status %d after %d attempt(s): %v", e.StatusCode, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort an enrichment run
func IsFatal(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrMissingToken)
}
