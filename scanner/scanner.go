// Package scanner defines the boundary to an external malware-signature
// engine. The pipeline depends on the engine only through the Scanner
// interface; detection logic itself is the engine's concern.
package scanner

import (
	"context"
	"io"
)

// Status is the tagged result class of a scan.
type Status string

const (
	// StatusClean means the engine examined the content and found nothing.
	StatusClean Status = "clean"

	// StatusInfected means the engine matched a known signature.
	StatusInfected Status = "infected"

	// StatusUnavailable means the engine could not be reached or did not
	// answer in time. Deliberately distinct from clean: an unavailable
	// scanner must never silently read as safe in the audit trail.
	StatusUnavailable Status = "unavailable"
)

// Outcome is the result of one scan attempt.
type Outcome struct {
	Status Status

	// Signature is the matched signature name when Status is infected.
	Signature string `json:",omitempty"`

	// Reason describes why the engine was unavailable.
	Reason string `json:",omitempty"`

	// TimedOut marks an unavailable outcome caused by a deadline rather
	// than a transport failure. Timeouts are the only outcomes the
	// pipeline retries.
	TimedOut bool `json:",omitempty"`
}

// Clean returns a clean outcome.
func Clean() Outcome {
	return Outcome{Status: StatusClean}
}

// Infected returns an infected outcome carrying the signature name.
func Infected(signature string) Outcome {
	return Outcome{Status: StatusInfected, Signature: signature}
}

// Unavailable returns an unavailable outcome carrying the failure reason.
func Unavailable(reason string, timedOut bool) Outcome {
	return Outcome{Status: StatusUnavailable, Reason: reason, TimedOut: timedOut}
}

// Scanner is the contract an external signature engine must satisfy.
// Implementations must be safe for concurrent use by multiple pipeline runs.
type Scanner interface {
	// Scan submits the content for signature matching. Availability
	// failures are reported in the Outcome, never as a Go error; the
	// caller's policy decides what unavailability means.
	Scan(ctx context.Context, r io.Reader, name string) Outcome
}
