package jobs

import "errors"

// ErrNotFound indicates the job id does not exist in the store. Callers
// reporting progress must treat this as fatal to the job.
var ErrNotFound = errors.New("job not found")

// ErrForbidden indicates the requester does not own the job.
var ErrForbidden = errors.New("job access denied")
