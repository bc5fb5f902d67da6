package client

import (
	"errors"
	"fmt"
)

// ErrRequestFailed matches every error returned by Client.Do.
var ErrRequestFailed = errors.New("request failed")

// RequestError describes a failed request. Err is set for transport
// failures; StatusCode is set when the server answered with a non-2xx
// status.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}
