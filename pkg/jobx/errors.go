package jobx

import "github.com/Abraxas-365/bulkmail/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrInvalidJob     = jobxErrors.Register("INVALID_JOB", errx.TypeValidation, 400, "Invalid job definition")
	ErrEmptyBatch     = jobxErrors.Register("EMPTY_BATCH", errx.TypeValidation, 400, "Batch contains no jobs")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Worker is already running")
	ErrLeaseLost      = jobxErrors.Register("LEASE_LOST", errx.TypeConflict, 409, "Job lease expired or is held by another worker")
)

// LeaseLost is returned by a backend when a worker reports on a job it no
// longer owns.
func LeaseLost(jobID string) *errx.Error {
	return jobxErrors.New(ErrLeaseLost).WithDetail("job_id", jobID)
}
