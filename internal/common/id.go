package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// IsSafeJobID reports whether an externally supplied job ID is well formed.
// Job IDs are used as storage keys, so anything else is rejected up front.
func IsSafeJobID(jobID string) bool {
	if !strings.HasPrefix(jobID, "job_") {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(jobID, "job_"))
	return err == nil
}
