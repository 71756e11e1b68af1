package services

import (
	"fmt"

	"github.com/oculis/filevault/internal/common"
)

// ScanRejectedError reports an upload denied by the content scanner. Exactly
// one of Threat or Reason is set: Threat names a detected signature, Reason
// describes an engine failure. Matches common.ErrScanRejected via errors.Is.
type ScanRejectedError struct {
	Threat string
	Reason string
}

func (e *ScanRejectedError) Error() string {
	switch {
	case e.Threat != "":
		return fmt.Sprintf("file scan failed: %s", e.Threat)
	case e.Reason != "":
		return fmt.Sprintf("file scan failed: %s", e.Reason)
	default:
		return "file scan failed: unknown threat detected"
	}
}

func (e *ScanRejectedError) Unwrap() error {
	return common.ErrScanRejected
}
