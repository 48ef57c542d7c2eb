package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InputError is a malformed or missing argument detected before any network
// call.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// TransportError is a failure to reach the server.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-success HTTP response. Message is the server's
// message, verbatim.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Message
}

// Detail returns the status code and message.
func (e *UpstreamError) Detail() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// upstreamMessage extracts the error message from a response body: the
// "error" member of a JSON object when present, else the trimmed raw text.
func upstreamMessage(body []byte) string {
	var v struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &v); err == nil && v.Error != "" {
		return v.Error
	}
	return strings.TrimSpace(string(body))
}
