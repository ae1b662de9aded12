package analysis

import "errors"

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("analysis job not found")

// ErrQuotaExceeded indicates the capability provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("capability quota exceeded")

// ErrInvalidTransition indicates a job status update would move backwards
// or mutate an already terminal job.
var ErrInvalidTransition = errors.New("invalid job status transition")
