package ports

import (
	"context"
	"errors"

	"brandguard/internal/domain"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// BrandRepository stores the registry of legitimate brands.
type BrandRepository interface {
	CreateBrand(ctx context.Context, b *domain.Brand) error
	UpdateBrand(ctx context.Context, b *domain.Brand) error
	GetBrand(ctx context.Context, id string) (domain.Brand, error)
	ListBrands(ctx context.Context) ([]domain.Brand, error)
}

// CandidateRepository stores observed marketplace apps, keyed by package id.
type CandidateRepository interface {
	// UpsertCandidate creates the candidate on first observation and
	// refreshes the mutable fields on re-observation. Returns the stored
	// record.
	UpsertCandidate(ctx context.Context, c *domain.Candidate) (domain.Candidate, error)
	GetCandidateByPackageID(ctx context.Context, packageID string) (domain.Candidate, error)
}

// DetectionFilter narrows detection listings. Empty fields match everything.
type DetectionFilter struct {
	BrandID   string
	RiskLevel string
	Status    string
}

// DetectionRepository stores impersonation verdicts, at most one per
// (brand, candidate) pair.
type DetectionRepository interface {
	UpsertDetection(ctx context.Context, d *domain.Detection) error
	GetDetection(ctx context.Context, id string) (domain.Detection, error)
	ListDetections(ctx context.Context, f DetectionFilter) ([]domain.Detection, error)
	UpdateDetectionStatus(ctx context.Context, id, status string) error
}
