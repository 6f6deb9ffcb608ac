package jobxredis

import "github.com/Abraxas-365/bulkmail/pkg/errx"

var redisErrors = errx.NewRegistry("JOBX_REDIS")

var (
	ErrEnqueue   = redisErrors.Register("ENQUEUE", errx.TypeUnavailable, 503, "Redis enqueue failed")
	ErrDequeue   = redisErrors.Register("DEQUEUE", errx.TypeUnavailable, 503, "Redis dequeue failed")
	ErrGetJob    = redisErrors.Register("GET_JOB", errx.TypeUnavailable, 503, "Redis get job failed")
	ErrUpdate    = redisErrors.Register("UPDATE", errx.TypeUnavailable, 503, "Redis job update failed")
	ErrPromote   = redisErrors.Register("PROMOTE", errx.TypeUnavailable, 503, "Redis promote failed")
	ErrReap      = redisErrors.Register("REAP", errx.TypeUnavailable, 503, "Redis lease reap failed")
	ErrNotFound  = redisErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Job not found in Redis")
	ErrMarshal   = redisErrors.Register("MARSHAL", errx.TypeInternal, 500, "Failed to marshal job data")
	ErrUnmarshal = redisErrors.Register("UNMARSHAL", errx.TypeInternal, 500, "Failed to unmarshal job data")
)
