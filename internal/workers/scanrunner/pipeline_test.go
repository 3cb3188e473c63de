package scanrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandguard/internal/detectors"
	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

// memStore is an in-memory stand-in for the postgres adapter, implementing
// every repository port the pipeline touches.
type memStore struct {
	mu         sync.Mutex
	brands     map[string]domain.Brand
	candidates map[string]domain.Candidate // by package id
	detections map[string]domain.Detection
	jobs       map[string]domain.ScanJob
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		brands:     make(map[string]domain.Brand),
		candidates: make(map[string]domain.Candidate),
		detections: make(map[string]domain.Detection),
		jobs:       make(map[string]domain.ScanJob),
	}
}

func (s *memStore) genID() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *memStore) CreateBrand(_ context.Context, b *domain.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[b.ID] = *b
	return nil
}

func (s *memStore) UpdateBrand(_ context.Context, b *domain.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[b.ID]; !ok {
		return ports.ErrNotFound
	}
	s.brands[b.ID] = *b
	return nil
}

func (s *memStore) GetBrand(_ context.Context, id string) (domain.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brands[id]
	if !ok {
		return domain.Brand{}, ports.ErrNotFound
	}
	return b, nil
}

func (s *memStore) ListBrands(_ context.Context) ([]domain.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Brand
	for _, b := range s.brands {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) UpsertCandidate(_ context.Context, c *domain.Candidate) (domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.candidates[c.PackageID]; ok {
		c.ID = existing.ID
		c.FirstSeen = existing.FirstSeen
	} else {
		c.ID = s.genID()
		c.FirstSeen = time.Now().UTC()
	}
	c.LastChecked = time.Now().UTC()
	s.candidates[c.PackageID] = *c
	return *c, nil
}

func (s *memStore) GetCandidateByPackageID(_ context.Context, packageID string) (domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[packageID]
	if !ok {
		return domain.Candidate{}, ports.ErrNotFound
	}
	return c, nil
}

func (s *memStore) UpsertDetection(_ context.Context, d *domain.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.detections {
		if existing.BrandID == d.BrandID && existing.CandidateID == d.CandidateID {
			d.ID = id
			d.Status = existing.Status
			break
		}
	}
	s.detections[d.ID] = *d
	return nil
}

func (s *memStore) GetDetection(_ context.Context, id string) (domain.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.detections[id]
	if !ok {
		return domain.Detection{}, ports.ErrNotFound
	}
	return d, nil
}

func (s *memStore) ListDetections(_ context.Context, f ports.DetectionFilter) ([]domain.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Detection
	for _, d := range s.detections {
		if f.BrandID != "" && d.BrandID != f.BrandID {
			continue
		}
		if f.RiskLevel != "" && string(d.RiskLevel) != f.RiskLevel {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) UpdateDetectionStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.detections[id]
	if !ok {
		return ports.ErrNotFound
	}
	d.Status = status
	s.detections[id] = d
	return nil
}

func (s *memStore) CreateJob(_ context.Context, brandID string, sources []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.genID()
	s.jobs[id] = domain.ScanJob{
		ID:        id,
		BrandID:   brandID,
		Sources:   sources,
		Status:    domain.ScanPending,
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (s *memStore) GetJob(_ context.Context, id string) (domain.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ScanJob{}, ports.ErrNotFound
	}
	return j, nil
}

func (s *memStore) ClaimNext(_ context.Context) (domain.ScanJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.Status == domain.ScanPending {
			now := time.Now().UTC()
			j.Status = domain.ScanRunning
			j.StartedAt = &now
			s.jobs[id] = j
			return j, true, nil
		}
	}
	return domain.ScanJob{}, false, nil
}

func (s *memStore) UpdateCounters(_ context.Context, jobID string, appsScanned, detectionsFound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ports.ErrNotFound
	}
	j.AppsScanned = appsScanned
	j.DetectionsFound = detectionsFound
	s.jobs[jobID] = j
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, jobID string, appsScanned, detectionsFound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ports.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = domain.ScanCompleted
	j.AppsScanned = appsScanned
	j.DetectionsFound = detectionsFound
	j.CompletedAt = &now
	s.jobs[jobID] = j
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, jobID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ports.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = domain.ScanFailed
	j.ErrorMessage = &reason
	j.CompletedAt = &now
	s.jobs[jobID] = j
	return nil
}

// fakeCollector serves a fixed candidate list and review corpus.
type fakeCollector struct {
	results []domain.Candidate
	reviews map[string][]domain.Review
}

func (c *fakeCollector) Search(_ context.Context, _ string, _ int) ([]domain.Candidate, error) {
	return c.results, nil
}

func (c *fakeCollector) FetchDetails(_ context.Context, packageID string) (domain.Candidate, bool, error) {
	for _, r := range c.results {
		if r.PackageID == packageID {
			return r, true, nil
		}
	}
	return domain.Candidate{}, false, nil
}

func (c *fakeCollector) FetchReviews(_ context.Context, packageID string, _ int) ([]domain.Review, error) {
	return c.reviews[packageID], nil
}

type staticFetcher struct {
	icons map[string][]byte
}

func (f *staticFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	raw, ok := f.icons[ref]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return raw, nil
}

func testIconPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPipeline(store *memStore, collector ports.Collector, icons map[string][]byte) *Pipeline {
	return &Pipeline{
		Brands:       store,
		Candidates:   store,
		Detections:   store,
		Jobs:         store,
		Collectors:   map[string]ports.Collector{"testmarket": collector},
		Names:        detectors.NewNameDetector(),
		Icons:        detectors.NewIconDetector(&staticFetcher{icons: icons}, nil),
		Certs:        detectors.NewCertificateAnalyzer(),
		Reviews:      detectors.NewReviewFraudDetector(),
		MaxResults:   50,
		MaxReviews:   100,
		Concurrency:  4,
		FetchTimeout: time.Second,
		Log:          zerolog.Nop(),
	}
}

func seedBrand(t *testing.T, store *memStore) domain.Brand {
	t.Helper()
	b := domain.Brand{
		ID:           "brand-1",
		Name:         "PayPal",
		PackageIDs:   []string{"com.paypal.app"},
		IconURLs:     []string{"https://cdn/paypal.png"},
		Certificates: []string{"officialsha256"},
	}
	require.NoError(t, store.CreateBrand(context.Background(), &b))
	return b
}

func scanJob(brandID string) domain.ScanJob {
	return domain.ScanJob{ID: "job-1", BrandID: brandID, Sources: []string{"testmarket"}}
}

func TestProcessMissingBrandFailsJob(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(store, &fakeCollector{}, nil)

	_, _, err := p.Process(context.Background(), scanJob("ghost"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brand ghost not found")
}

func TestProcessEmptyMarketplace(t *testing.T) {
	store := newMemStore()
	brand := seedBrand(t, store)
	p := newTestPipeline(store, &fakeCollector{}, nil)

	scanned, found, err := p.Process(context.Background(), scanJob(brand.ID))
	require.NoError(t, err)
	assert.Zero(t, scanned)
	assert.Zero(t, found)
}

func TestProcessSkipsLegitimatePackages(t *testing.T) {
	store := newMemStore()
	brand := seedBrand(t, store)
	collector := &fakeCollector{results: []domain.Candidate{
		{PackageID: "com.paypal.app", AppName: "PayPal"},
	}}
	p := newTestPipeline(store, collector, nil)

	scanned, found, err := p.Process(context.Background(), scanJob(brand.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, scanned)
	assert.Zero(t, found)
	ds, _ := store.ListDetections(context.Background(), ports.DetectionFilter{})
	assert.Empty(t, ds)
}

func TestProcessPersistsHighConfidenceImpostor(t *testing.T) {
	store := newMemStore()
	brand := seedBrand(t, store)
	icon := testIconPNG(t)
	collector := &fakeCollector{results: []domain.Candidate{
		{PackageID: "com.paypa1.app", AppName: "PayPaI", IconURL: "https://evil/icon.png"},
	}}
	p := newTestPipeline(store, collector, map[string][]byte{
		"https://cdn/paypal.png": icon,
		"https://evil/icon.png":  icon,
	})

	scanned, found, err := p.Process(context.Background(), scanJob(brand.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, scanned)
	assert.Equal(t, 1, found)

	ds, err := store.ListDetections(context.Background(), ports.DetectionFilter{BrandID: brand.ID})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	d := ds[0]
	// icon 1.0, name 0.95, cert mismatch, no reviews:
	// 0.35 + 0.3325 + 0.15 = 0.8325
	assert.InDelta(t, 0.8325, d.Confidence, 0.0001)
	assert.Equal(t, domain.RiskHigh, d.RiskLevel)
	assert.Equal(t, domain.DetectionPending, d.Status)
	assert.False(t, d.CertificateMatch)
	assert.NotEmpty(t, d.Reasons)
}

func TestProcessIgnoresLowConfidenceCandidates(t *testing.T) {
	store := newMemStore()
	brand := seedBrand(t, store)
	collector := &fakeCollector{results: []domain.Candidate{
		{PackageID: "org.weather.widget", AppName: "Weather Widget"},
	}}
	p := newTestPipeline(store, collector, nil)

	scanned, found, err := p.Process(context.Background(), scanJob(brand.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, scanned)
	assert.Zero(t, found)
	ds, _ := store.ListDetections(context.Background(), ports.DetectionFilter{})
	assert.Empty(t, ds)
}

func TestProcessCertificateMatchLowersConfidence(t *testing.T) {
	store := newMemStore()
	brand := seedBrand(t, store)
	icon := testIconPNG(t)
	collector := &fakeCollector{results: []domain.Candidate{
		{
			PackageID:              "com.paypal.mirror",
			AppName:                "PayPal",
			IconURL:                "https://mirror/icon.png",
			CertificateFingerprint: "OFFICIALSHA256",
		},
	}}
	p := newTestPipeline(store, collector, map[string][]byte{
		"https://cdn/paypal.png":  icon,
		"https://mirror/icon.png": icon,
	})

	_, found, err := p.Process(context.Background(), scanJob(brand.ID))
	require.NoError(t, err)
	// icon 1.0 + name 1.0 with a verified certificate sits exactly on the
	// publish threshold: 0.35 + 0.35 = 0.70.
	assert.Equal(t, 1, found)
	ds, _ := store.ListDetections(context.Background(), ports.DetectionFilter{})
	require.Len(t, ds, 1)
	assert.InDelta(t, 0.70, ds[0].Confidence, 0.0001)
	assert.Equal(t, domain.RiskMedium, ds[0].RiskLevel)
	assert.True(t, ds[0].CertificateMatch)
}

func TestProcessRerunUpdatesExistingDetection(t *testing.T) {
	store := newMemStore()
	brand := seedBrand(t, store)
	icon := testIconPNG(t)
	collector := &fakeCollector{results: []domain.Candidate{
		{PackageID: "com.paypa1.app", AppName: "PayPaI", IconURL: "https://evil/icon.png"},
	}}
	p := newTestPipeline(store, collector, map[string][]byte{
		"https://cdn/paypal.png": icon,
		"https://evil/icon.png":  icon,
	})

	ctx := context.Background()
	_, _, err := p.Process(ctx, scanJob(brand.ID))
	require.NoError(t, err)
	ds, _ := store.ListDetections(ctx, ports.DetectionFilter{})
	require.Len(t, ds, 1)
	require.NoError(t, store.UpdateDetectionStatus(ctx, ds[0].ID, domain.DetectionConfirmed))

	_, _, err = p.Process(ctx, scanJob(brand.ID))
	require.NoError(t, err)
	ds, _ = store.ListDetections(ctx, ports.DetectionFilter{})
	require.Len(t, ds, 1)
	// Re-detection refreshes scores but keeps the triage decision.
	assert.Equal(t, domain.DetectionConfirmed, ds[0].Status)
}
