package types

import (
	"fmt"
	"strings"
)

// BackendCodeHashMismatch is the error code the scanning backend uses when the
// content hash it computed does not match the declared one.
const BackendCodeHashMismatch = "HASH_MISMATCH"

// BackendError is a failed call to the scanning backend. Status is 0 when the
// backend could not be reached at all.
type BackendError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("backend %s: status %d: %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("backend %s: status %d", e.Op, e.Status)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IntegrityMismatch reports whether the backend rejected the content hash.
func (e *BackendError) IntegrityMismatch() bool {
	return strings.EqualFold(e.Code, BackendCodeHashMismatch)
}
