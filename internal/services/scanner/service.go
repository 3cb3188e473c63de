package scanner

import (
	"context"
	"fmt"

	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

// Service enqueues and tracks scan jobs. Jobs are picked up asynchronously
// by the scanrunner workers.
type Service struct {
	brands ports.BrandRepository
	jobs   ports.JobRepository
}

func New(brands ports.BrandRepository, jobs ports.JobRepository) *Service {
	return &Service{brands: brands, jobs: jobs}
}

// Enqueue creates a pending scan job for a registered brand over the given
// sources.
func (s *Service) Enqueue(ctx context.Context, brandID string, sources []string) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("at least one source is required")
	}
	if _, err := s.brands.GetBrand(ctx, brandID); err != nil {
		return "", err
	}
	return s.jobs.CreateJob(ctx, brandID, sources)
}

func (s *Service) Status(ctx context.Context, jobID string) (domain.ScanJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}
