package ports

import (
	"context"

	"brandguard/internal/domain"
)

// JobRepository supports creating, claiming and finishing scan jobs.
type JobRepository interface {
	CreateJob(ctx context.Context, brandID string, sources []string) (jobID string, err error)
	GetJob(ctx context.Context, jobID string) (domain.ScanJob, error)

	// ClaimNext locks the oldest pending job and transitions it to running,
	// recording the start time.
	ClaimNext(ctx context.Context) (job domain.ScanJob, found bool, err error)

	UpdateCounters(ctx context.Context, jobID string, appsScanned, detectionsFound int) error
	MarkCompleted(ctx context.Context, jobID string, appsScanned, detectionsFound int) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
}
