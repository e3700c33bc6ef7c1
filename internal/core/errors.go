// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. The filter itself never fails a packet; these surface from
// the host runtime around it (configuration, capture, sinks).
var (
	// Configuration errors
	ErrConfigInvalid = errors.New("icom: invalid configuration")

	// Source errors
	ErrSourceClosed        = errors.New("icom: source closed")
	ErrUnknownSource       = errors.New("icom: unknown source")
	ErrUnsupportedLinkType = errors.New("icom: unsupported link type")

	// Sink errors
	ErrSinkClosed  = errors.New("icom: sink closed")
	ErrUnknownSink = errors.New("icom: unknown sink")

	// Inspection errors
	ErrNotSIP = errors.New("icom: payload is not a SIP message")
)
