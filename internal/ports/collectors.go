package ports

import (
	"context"

	"brandguard/internal/domain"
)

// Collector pulls candidate app records from one marketplace source.
// Implementations must swallow ordinary network failures and return empty
// results; the orchestrator treats empty as "no signal", not as job failure.
type Collector interface {
	Search(ctx context.Context, brandName string, maxResults int) ([]domain.Candidate, error)
	FetchDetails(ctx context.Context, packageID string) (candidate domain.Candidate, found bool, err error)
	FetchReviews(ctx context.Context, packageID string, maxReviews int) ([]domain.Review, error)
}

// CertificateExtractor obtains a signing-certificate descriptor for a
// candidate package. Extraction is an external static-analysis capability;
// deployments without it leave the extractor nil and the certificate signal
// degrades to the candidate's stored fingerprint, if any.
type CertificateExtractor interface {
	Extract(ctx context.Context, c domain.Candidate) (info domain.CertificateInfo, found bool, err error)
}
