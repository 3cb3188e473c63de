// Package collectors holds boundary implementations of the Collector port.
// JSONFeed reads candidate records from an HTTP JSON endpoint; real
// marketplace collectors plug in behind the same interface.
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"brandguard/internal/domain"
)

// JSONFeed pulls candidates and reviews from a feed exposing
// GET {base}/search?q=&limit=, GET {base}/apps/{id} and
// GET {base}/apps/{id}/reviews?limit=.
//
// Ordinary network failures yield empty results, never errors: an
// unreachable source is "no signal" to the orchestrator, not a job failure.
type JSONFeed struct {
	base   string
	source string
	client *http.Client
}

func NewJSONFeed(baseURL, source string, timeout time.Duration) *JSONFeed {
	return &JSONFeed{
		base:   baseURL,
		source: source,
		client: &http.Client{Timeout: timeout},
	}
}

type candidateDoc struct {
	PackageID              string   `json:"package_id"`
	AppName                string   `json:"app_name"`
	DeveloperName          string   `json:"developer_name"`
	IconURL                string   `json:"icon_url"`
	ScreenshotURLs         []string `json:"screenshot_urls"`
	StoreURL               string   `json:"store_url"`
	DownloadCount          int64    `json:"download_count"`
	Rating                 float64  `json:"rating"`
	ReviewsCount           int      `json:"reviews_count"`
	CertificateFingerprint string   `json:"certificate_fingerprint"`
}

type reviewDoc struct {
	Text   string `json:"text"`
	Rating int    `json:"rating"`
	Date   string `json:"date"` // YYYY-MM-DD
	Author string `json:"author"`
}

func (f *JSONFeed) Search(ctx context.Context, brandName string, maxResults int) ([]domain.Candidate, error) {
	u := fmt.Sprintf("%s/search?q=%s&limit=%d", f.base, url.QueryEscape(brandName), maxResults)
	var docs []candidateDoc
	if !f.getJSON(ctx, u, &docs) {
		return nil, nil
	}
	out := make([]domain.Candidate, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain(f.source))
	}
	return out, nil
}

func (f *JSONFeed) FetchDetails(ctx context.Context, packageID string) (domain.Candidate, bool, error) {
	u := fmt.Sprintf("%s/apps/%s", f.base, url.PathEscape(packageID))
	var doc candidateDoc
	if !f.getJSON(ctx, u, &doc) || doc.PackageID == "" {
		return domain.Candidate{}, false, nil
	}
	return doc.toDomain(f.source), true, nil
}

func (f *JSONFeed) FetchReviews(ctx context.Context, packageID string, maxReviews int) ([]domain.Review, error) {
	u := fmt.Sprintf("%s/apps/%s/reviews?limit=%d", f.base, url.PathEscape(packageID), maxReviews)
	var docs []reviewDoc
	if !f.getJSON(ctx, u, &docs) {
		return nil, nil
	}
	out := make([]domain.Review, 0, len(docs))
	for _, d := range docs {
		r := domain.Review{Text: d.Text, Rating: d.Rating, Author: d.Author}
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			r.Date = t
		}
		out = append(out, r)
	}
	return out, nil
}

// getJSON reports whether the target responded with decodable JSON. All
// failure modes collapse to false.
func (f *JSONFeed) getJSON(ctx context.Context, u string, v any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(v) == nil
}

func (d candidateDoc) toDomain(source string) domain.Candidate {
	return domain.Candidate{
		PackageID:              d.PackageID,
		AppName:                d.AppName,
		DeveloperName:          d.DeveloperName,
		IconURL:                d.IconURL,
		ScreenshotURLs:         d.ScreenshotURLs,
		StoreURL:               d.StoreURL,
		Source:                 source,
		DownloadCount:          d.DownloadCount,
		Rating:                 d.Rating,
		ReviewsCount:           d.ReviewsCount,
		CertificateFingerprint: d.CertificateFingerprint,
	}
}
