package crm

import "fmt"

// AuthError is an HTTP 401/403 from the CRM. The message carries
// scope/location guidance for the common v2 token misconfigurations.
// It is never retried beyond the single bearer-prefix flip.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// RateLimitError is surfaced once the 409/429 retry budget is
// exhausted, carrying the final response body.
type RateLimitError struct {
	Status int
	Body   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s", e.Body)
}

// MalformedResponseError means the CRM returned a 2xx whose body was
// not JSON or was missing the expected nested fields. The remote
// contract was violated so this is terminal.
type MalformedResponseError struct {
	Body string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("invalid response from api: %s", e.Body)
}

// NetworkError wraps a transport-level failure that survived the
// retry schedule.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Err.Error())
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ClientError is a non-auth 4xx, e.g. enrolling a contact into a
// workflow that no longer exists. Terminal, never retried.
type ClientError struct {
	Status int
	Body   string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: %d - %s", e.Status, e.Body)
}

// ServerError is a 5xx that survived its retry budget.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.Status, e.Body)
}
