package geonode

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed GeoNode operation so callers can decide
// between retrying, re-prompting for credentials, or surfacing the
// server's message.
type Kind string

const (
	// KindNetwork is a transport-level failure. Retryable.
	KindNetwork Kind = "network"

	// KindAuth is a 401/403. Never retried automatically.
	KindAuth Kind = "auth"

	// KindAPIIncompatible means the detected API generation does not
	// support the requested feature.
	KindAPIIncompatible Kind = "api-incompatible"

	// KindServer is any other 4xx/5xx, carrying the server-provided
	// message.
	KindServer Kind = "server"
)

// Error is a typed failure from a GeoNode instance.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("geonode: %s (%d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("geonode: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("geonode: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

// KindOf extracts the failure kind from err, or "" if err is not a
// GeoNode error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func classifyStatus(status int, serverMessage string) *Error {
	kind := KindServer

	if status == 401 || status == 403 {
		kind = KindAuth
	}

	if serverMessage == "" {
		serverMessage = "request rejected by server"
	}

	return &Error{Kind: kind, HTTPStatus: status, Message: serverMessage}
}

// Timeouts and cancellations count as network failures.
func classifyTransport(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindNetwork, Message: "request timed out", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Message: "request timed out", Err: err}
	}

	return &Error{Kind: KindNetwork, Message: "request failed", Err: err}
}

func incompatible(feature string, version string) *Error {
	return &Error{
		Kind:    KindAPIIncompatible,
		Message: fmt.Sprintf("%s is not supported by the %s API", feature, version),
	}
}
