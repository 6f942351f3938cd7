package archive

import (
	"errors"
	"fmt"
)

// BombError reports that an archive exceeded a structural limit. Limit names
// which check tripped: "entries", "entry_ratio", "total_uncompressed", or
// "expansion_ratio".
type BombError struct {
	Limit    string
	Observed int64
	Allowed  int64
}

// Error implements the error interface.
func (e *BombError) Error() string {
	return fmt.Sprintf("archive bomb: %s %d exceeds limit %d", e.Limit, e.Observed, e.Allowed)
}

// MalformedError reports an archive whose directory structure cannot be
// parsed or whose entry names are hostile.
type MalformedError struct {
	Reason string
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed archive: %s", e.Reason)
}

// IsBomb reports whether an error is a BombError.
func IsBomb(err error) bool {
	var bombErr *BombError
	return errors.As(err, &bombErr)
}

// IsMalformed reports whether an error is a MalformedError.
func IsMalformed(err error) bool {
	var malformedErr *MalformedError
	return errors.As(err, &malformedErr)
}
