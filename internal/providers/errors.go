package providers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport      = errors.New("octopus: transport failure")
	ErrAuthentication = errors.New("octopus: authentication failed")
	ErrTopology       = errors.New("octopus: unexpected account topology")
)

// TransportError covers non-2xx responses, network failures and bodies that
// are not valid JSON. StatusCode is zero when no response was received.
type TransportError struct {
	API        string
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: request %s failed", e.API, e.URL)
	if e.Status != "" {
		fmt.Fprintf(&b, " (%s)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// QueryError carries the messages of a GraphQL "errors" array.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("octopus: token exchange failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// TopologyError is returned when an account has more (or fewer) agreements or
// consumption edges than the single one a query requires.
type TopologyError struct {
	MPAN   string
	Serial string
	Kind   string
	Count  int
}

func (e *TopologyError) Error() string {
	subject := "meter point " + e.MPAN
	if e.Serial != "" {
		subject += " meter " + e.Serial
	}
	return fmt.Sprintf("octopus: %s has %d %s, want exactly 1", subject, e.Count, e.Kind)
}

func (e *TopologyError) Is(target error) bool {
	return target == ErrTopology
}
