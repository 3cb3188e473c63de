package scanrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"brandguard/internal/detectors"
	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

// Pipeline drives the four detectors over collected candidates for one brand
// and persists qualifying detections. Each detector invocation is a pure
// function of (brand, candidate); candidates are scored concurrently up to
// Concurrency.
type Pipeline struct {
	Brands     ports.BrandRepository
	Candidates ports.CandidateRepository
	Detections ports.DetectionRepository
	Jobs       ports.JobRepository
	Collectors map[string]ports.Collector
	CertSource ports.CertificateExtractor // optional

	Names   *detectors.NameDetector
	Icons   *detectors.IconDetector
	Certs   *detectors.CertificateAnalyzer
	Reviews *detectors.ReviewFraudDetector

	MaxResults   int
	MaxReviews   int
	Concurrency  int
	FetchTimeout time.Duration
	Log          zerolog.Logger
}

// Process runs one scan job: per requested source, pull candidates, skip the
// brand's own packages, score the rest, and persist detections at or above
// the publish threshold. A per-candidate failure is logged and skipped; only
// orchestration-level failures (missing brand, repo errors on the job itself)
// fail the job.
func (p *Pipeline) Process(ctx context.Context, job domain.ScanJob) (int, int, error) {
	brand, err := p.Brands.GetBrand(ctx, job.BrandID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return 0, 0, fmt.Errorf("brand %s not found", job.BrandID)
		}
		return 0, 0, fmt.Errorf("load brand: %w", err)
	}

	legit := make(map[string]struct{}, len(brand.PackageIDs))
	for _, id := range brand.PackageIDs {
		legit[id] = struct{}{}
	}

	var scanned, found atomic.Int64
	for _, source := range job.Sources {
		collector, ok := p.Collectors[source]
		if !ok {
			p.Log.Warn().Str("source", source).Msg("unknown source")
			continue
		}

		apps, err := collector.Search(ctx, brand.Name, p.MaxResults)
		if err != nil {
			// Collectors degrade to empty on ordinary failures; an error here
			// is still no reason to abort the other sources.
			p.Log.Error().Err(err).Str("source", source).Msg("collector search failed")
			continue
		}
		p.Log.Info().Str("source", source).Int("count", len(apps)).Msg("candidates collected")

		g := new(errgroup.Group)
		g.SetLimit(p.concurrency())
		for _, app := range apps {
			if ctx.Err() != nil {
				break
			}
			app := app
			app.Source = source
			g.Go(func() error {
				scanned.Add(1)
				if _, isLegit := legit[app.PackageID]; isLegit {
					return nil
				}
				detected, err := p.scoreCandidate(ctx, brand, app, collector)
				if err != nil {
					// Failure isolation: one bad candidate must not abort the job.
					p.Log.Error().Err(err).Str("package_id", app.PackageID).Msg("candidate skipped")
					return nil
				}
				if detected {
					found.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := p.Jobs.UpdateCounters(ctx, job.ID, int(scanned.Load()), int(found.Load())); err != nil {
			p.Log.Error().Err(err).Str("job_id", job.ID).Msg("counter update failed")
		}
	}

	if err := ctx.Err(); err != nil {
		return int(scanned.Load()), int(found.Load()), err
	}
	return int(scanned.Load()), int(found.Load()), nil
}

// scoreCandidate upserts the candidate record, gathers the external signals
// concurrently under the fetch timeout, runs the detectors, and persists the
// detection when confidence reaches the publish threshold.
func (p *Pipeline) scoreCandidate(ctx context.Context, brand domain.Brand, app domain.Candidate, collector ports.Collector) (bool, error) {
	stored, err := p.Candidates.UpsertCandidate(ctx, &app)
	if err != nil {
		return false, fmt.Errorf("upsert candidate: %w", err)
	}

	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout())
	defer cancel()

	var (
		iconScore float64
		reviews   []domain.Review
		cert      *domain.CertificateInfo
		wg        sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		iconScore = p.bestIconScore(fctx, brand.IconURLs, stored.IconURL)
	}()
	go func() {
		defer wg.Done()
		rs, err := collector.FetchReviews(fctx, stored.PackageID, p.MaxReviews)
		if err != nil {
			p.Log.Debug().Err(err).Str("package_id", stored.PackageID).Msg("review fetch degraded")
			return
		}
		reviews = rs
	}()
	go func() {
		defer wg.Done()
		cert = p.certificateInfo(fctx, stored)
	}()
	wg.Wait()

	nameOut := p.Names.Compare(brand.Name, stored.AppName)
	certMatch, certReasons := p.Certs.Verify(cert, brand.Certificates)
	reviewAnalysis := p.Reviews.Analyze(reviews)

	confidence, risk := detectors.Aggregate(iconScore, nameOut.Score, certMatch, reviewAnalysis.FraudScore)
	if confidence < detectors.PublishThreshold {
		return false, nil
	}

	reasons := p.buildReasons(brand, stored, nameOut, iconScore, cert, certMatch, certReasons, reviewAnalysis)
	det := &domain.Detection{
		ID:               uuid.NewString(),
		BrandID:          brand.ID,
		CandidateID:      stored.ID,
		IconScore:        iconScore,
		NameScore:        nameOut.Score,
		CertificateMatch: certMatch,
		ReviewFraudScore: reviewAnalysis.FraudScore,
		Confidence:       confidence,
		RiskLevel:        risk,
		Reasons:          reasons,
		Status:           domain.DetectionPending,
		DetectedAt:       time.Now().UTC(),
	}
	if err := p.Detections.UpsertDetection(ctx, det); err != nil {
		return false, fmt.Errorf("persist detection: %w", err)
	}
	return true, nil
}

// buildReasons collects every detector's evidence verbatim; downstream
// evidence generation depends on the full list, not just the score.
func (p *Pipeline) buildReasons(brand domain.Brand, cand domain.Candidate, nameOut domain.DetectorOutcome, iconScore float64, cert *domain.CertificateInfo, certMatch bool, certReasons []string, reviewAnalysis detectors.ReviewAnalysis) []string {
	var reasons []string
	reasons = append(reasons, nameOut.Reasons...)

	if brand.DeveloperName != "" && cand.DeveloperName != "" {
		if dev := p.Names.Compare(brand.DeveloperName, cand.DeveloperName); dev.Score >= 0.85 {
			reasons = append(reasons, fmt.Sprintf("developer name resembles brand developer: %.2f", dev.Score))
		}
	}
	for _, pkg := range brand.PackageIDs {
		if out := p.Names.ComparePackages(pkg, cand.PackageID); out.Score >= 0.80 {
			reasons = append(reasons, fmt.Sprintf("package identifier resembles %s: %.2f", pkg, out.Score))
			reasons = append(reasons, out.Reasons...)
			break
		}
	}
	if iconScore >= 0.80 {
		reasons = append(reasons, fmt.Sprintf("icon similarity: %.2f", iconScore))
	}
	reasons = append(reasons, certReasons...)
	if cert != nil && !certMatch {
		if signing := p.Certs.AnalyzeSigningPattern(cert); !signing.IsLegitimate {
			reasons = append(reasons, signing.Flags...)
		}
	}
	if reviewAnalysis.FraudScore > 0.60 {
		reasons = append(reasons, fmt.Sprintf("review fraud detected: %.2f", reviewAnalysis.FraudScore))
	}
	reasons = append(reasons, reviewAnalysis.Flags...)
	if kws := detectors.SuspiciousKeywords(cand.AppName); len(kws) > 0 {
		reasons = append(reasons, fmt.Sprintf("suspicious keywords in name: %v", kws))
	}
	return reasons
}

// bestIconScore compares the candidate icon against every official brand
// icon and keeps the highest similarity.
func (p *Pipeline) bestIconScore(ctx context.Context, brandIcons []string, candidateIcon string) float64 {
	if candidateIcon == "" {
		return 0.0
	}
	best := 0.0
	for _, ref := range brandIcons {
		if s := p.Icons.Compare(ctx, ref, candidateIcon); s > best {
			best = s
		}
	}
	return best
}

func (p *Pipeline) certificateInfo(ctx context.Context, cand domain.Candidate) *domain.CertificateInfo {
	if p.CertSource != nil {
		info, found, err := p.CertSource.Extract(ctx, cand)
		if err != nil {
			p.Log.Debug().Err(err).Str("package_id", cand.PackageID).Msg("certificate extraction degraded")
			return nil
		}
		if found {
			return &info
		}
		return nil
	}
	if cand.CertificateFingerprint != "" {
		return &domain.CertificateInfo{SHA256: cand.CertificateFingerprint}
	}
	return nil
}

func (p *Pipeline) concurrency() int {
	if p.Concurrency < 1 {
		return 1
	}
	return p.Concurrency
}

func (p *Pipeline) fetchTimeout() time.Duration {
	if p.FetchTimeout <= 0 {
		return 10 * time.Second
	}
	return p.FetchTimeout
}
