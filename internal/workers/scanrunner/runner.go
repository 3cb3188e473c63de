package scanrunner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

// Processor performs the detection work for one claimed scan job and returns
// the final counters.
type Processor interface {
	Process(ctx context.Context, job domain.ScanJob) (appsScanned, detectionsFound int, err error)
}

// Run starts worker goroutines that claim pending scan jobs and process
// them. Jobs are fire-and-forget relative to the request that created them;
// a processing error marks the job failed with the error message, it never
// stops the workers.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, concurrency int, pollInterval time.Duration, log zerolog.Logger) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan domain.ScanJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Error().Err(err).Msg("job claim error")
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				scanned, found, err := processor.Process(ctx, job)
				if err != nil {
					if mErr := repo.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
						log.Error().Err(mErr).Str("job_id", job.ID).Msg("mark failed error")
					}
					log.Error().Err(err).Int("worker", idx).Str("job_id", job.ID).Msg("scan job failed")
					continue
				}
				if err := repo.MarkCompleted(ctx, job.ID, scanned, found); err != nil {
					log.Error().Err(err).Int("worker", idx).Str("job_id", job.ID).Msg("mark completed error")
					continue
				}
				log.Info().Str("job_id", job.ID).
					Int("apps_scanned", scanned).
					Int("detections_found", found).
					Msg("scan completed")
			}
		}(i)
	}
}
