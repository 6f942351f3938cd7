package filegate

import (
	"errors"
	"fmt"
)

// Common pipeline errors
var (
	ErrExtensionNotAllowed  = errors.New("extension not in allow-list")
	ErrExtensionMismatch    = errors.New("extension does not match detected format")
	ErrDeclaredSizeExceeded = errors.New("declared size exceeds ceiling")
	ErrNameNotAllowed       = errors.New("filename matches deny pattern")
	ErrMissingExtension     = errors.New("filename has no extension")
	ErrUnknownFormat        = errors.New("unknown content format")
	ErrMalwareDetected      = errors.New("malware signature detected")
	ErrScannerUnavailable   = errors.New("signature scanner unavailable")
	ErrDisarmFailed         = errors.New("disarm failed")
)

// Stage identifies which pipeline stage produced an error.
type Stage string

const (
	StageValidate Stage = "validate"
	StageClassify Stage = "classify"
	StageInspect  Stage = "inspect"
	StagePreScan  Stage = "prescan"
	StageDisarm   Stage = "disarm"
	StagePostScan Stage = "postscan"
	StageDecide   Stage = "decide"
)

// PipelineError records the stage a failure occurred in and its cause.
// Internal errors degrade to a conservative Verdict; the caller never sees
// a raw error in place of one.
type PipelineError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether an error is one of the pre-classification
// validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrExtensionNotAllowed) ||
		errors.Is(err, ErrExtensionMismatch) ||
		errors.Is(err, ErrDeclaredSizeExceeded) ||
		errors.Is(err, ErrNameNotAllowed) ||
		errors.Is(err, ErrMissingExtension)
}
