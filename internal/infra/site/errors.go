package site

import "fmt"

// NetworkError is a transport failure or timeout. The request may be retried.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthenticationError means the site rejected the credentials or answered the
// login request with something unrecognizable.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
