package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrConfigurationMissing means no credential is configured for the provider.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrUnauthenticated means the bank connection has no access token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNetworkTimeout means a request did not complete in time.
	ErrNetworkTimeout = errors.New("network timeout")
)

// RequestError is a failed or non-2xx call to a remote API.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ErrorKind is the coarse classification callers act on.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConfigurationMissing
	KindUnauthenticated
	KindTimeout
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindTimeout:
		return "timeout"
	default:
		return "network"
	}
}

// Kind classifies err. Anything unrecognised is a network or server failure.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNetworkTimeout):
		return KindTimeout
	default:
		return KindNetwork
	}
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNetworkTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
