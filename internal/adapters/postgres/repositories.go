package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

// BrandRepository

func (db *DB) CreateBrand(ctx context.Context, b *domain.Brand) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO brands (id, name, package_ids, icon_urls, developer_name, certificates, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, b.ID, b.Name, jsonList(b.PackageIDs), jsonList(b.IconURLs), b.DeveloperName, jsonList(b.Certificates), b.CreatedAt, b.UpdatedAt)
	return err
}

func (db *DB) UpdateBrand(ctx context.Context, b *domain.Brand) error {
	b.UpdatedAt = time.Now().UTC()
	tag, err := db.Pool.Exec(ctx, `
        UPDATE brands
        SET name=$2, package_ids=$3, icon_urls=$4, developer_name=$5, certificates=$6, updated_at=$7
        WHERE id=$1
    `, b.ID, b.Name, jsonList(b.PackageIDs), jsonList(b.IconURLs), b.DeveloperName, jsonList(b.Certificates), b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (db *DB) GetBrand(ctx context.Context, id string) (domain.Brand, error) {
	var b domain.Brand
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, package_ids, icon_urls, developer_name, certificates, created_at, updated_at
        FROM brands WHERE id=$1
    `, id).Scan(&b.ID, &b.Name, &b.PackageIDs, &b.IconURLs, &b.DeveloperName, &b.Certificates, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, ports.ErrNotFound
	}
	return b, err
}

func (db *DB) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, name, package_ids, icon_urls, developer_name, certificates, created_at, updated_at
        FROM brands ORDER BY name
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Brand
	for rows.Next() {
		var b domain.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.PackageIDs, &b.IconURLs, &b.DeveloperName, &b.Certificates, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CandidateRepository

// Upsert creates on first observation; on re-observation the mutable fields
// take the latest values while id and first_seen are preserved.
func (db *DB) UpsertCandidate(ctx context.Context, c *domain.Candidate) (domain.Candidate, error) {
	var stored domain.Candidate
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO candidates (id, package_id, app_name, developer_name, icon_url, screenshot_urls,
                                store_url, source, download_count, rating, reviews_count,
                                certificate_fingerprint, first_seen, last_checked)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
        ON CONFLICT (package_id) DO UPDATE SET
            app_name=EXCLUDED.app_name,
            developer_name=EXCLUDED.developer_name,
            icon_url=EXCLUDED.icon_url,
            screenshot_urls=EXCLUDED.screenshot_urls,
            store_url=EXCLUDED.store_url,
            source=EXCLUDED.source,
            download_count=EXCLUDED.download_count,
            rating=EXCLUDED.rating,
            reviews_count=EXCLUDED.reviews_count,
            certificate_fingerprint=EXCLUDED.certificate_fingerprint,
            last_checked=now()
        RETURNING id, package_id, app_name, developer_name, icon_url, screenshot_urls,
                  store_url, source, download_count, rating, reviews_count,
                  certificate_fingerprint, first_seen, last_checked
    `, newID(c.ID), c.PackageID, c.AppName, c.DeveloperName, c.IconURL, jsonList(c.ScreenshotURLs),
		c.StoreURL, c.Source, c.DownloadCount, c.Rating, c.ReviewsCount, c.CertificateFingerprint).
		Scan(&stored.ID, &stored.PackageID, &stored.AppName, &stored.DeveloperName, &stored.IconURL,
			&stored.ScreenshotURLs, &stored.StoreURL, &stored.Source, &stored.DownloadCount,
			&stored.Rating, &stored.ReviewsCount, &stored.CertificateFingerprint,
			&stored.FirstSeen, &stored.LastChecked)
	return stored, err
}

func (db *DB) GetCandidateByPackageID(ctx context.Context, packageID string) (domain.Candidate, error) {
	var c domain.Candidate
	err := db.Pool.QueryRow(ctx, `
        SELECT id, package_id, app_name, developer_name, icon_url, screenshot_urls,
               store_url, source, download_count, rating, reviews_count,
               certificate_fingerprint, first_seen, last_checked
        FROM candidates WHERE package_id=$1
    `, packageID).Scan(&c.ID, &c.PackageID, &c.AppName, &c.DeveloperName, &c.IconURL,
		&c.ScreenshotURLs, &c.StoreURL, &c.Source, &c.DownloadCount,
		&c.Rating, &c.ReviewsCount, &c.CertificateFingerprint, &c.FirstSeen, &c.LastChecked)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ports.ErrNotFound
	}
	return c, err
}

// DetectionRepository

// UpsertDetection keeps at most one detection per (brand, candidate) pair;
// re-detection refreshes the scores and evidence but leaves the triage
// status alone.
func (db *DB) UpsertDetection(ctx context.Context, d *domain.Detection) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO detections (id, brand_id, candidate_id, icon_score, name_score, certificate_match,
                                review_fraud_score, confidence, risk_level, reasons, status, detected_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (brand_id, candidate_id) DO UPDATE SET
            icon_score=EXCLUDED.icon_score,
            name_score=EXCLUDED.name_score,
            certificate_match=EXCLUDED.certificate_match,
            review_fraud_score=EXCLUDED.review_fraud_score,
            confidence=EXCLUDED.confidence,
            risk_level=EXCLUDED.risk_level,
            reasons=EXCLUDED.reasons,
            detected_at=EXCLUDED.detected_at
    `, d.ID, d.BrandID, d.CandidateID, d.IconScore, d.NameScore, d.CertificateMatch,
		d.ReviewFraudScore, d.Confidence, string(d.RiskLevel), jsonList(d.Reasons), d.Status, d.DetectedAt)
	return err
}

func (db *DB) GetDetection(ctx context.Context, id string) (domain.Detection, error) {
	var d domain.Detection
	err := db.Pool.QueryRow(ctx, `
        SELECT id, brand_id, candidate_id, icon_score, name_score, certificate_match,
               review_fraud_score, confidence, risk_level, reasons, status, detected_at, confirmed_at
        FROM detections WHERE id=$1
    `, id).Scan(&d.ID, &d.BrandID, &d.CandidateID, &d.IconScore, &d.NameScore, &d.CertificateMatch,
		&d.ReviewFraudScore, &d.Confidence, &d.RiskLevel, &d.Reasons, &d.Status, &d.DetectedAt, &d.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, ports.ErrNotFound
	}
	return d, err
}

func (db *DB) ListDetections(ctx context.Context, f ports.DetectionFilter) ([]domain.Detection, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, brand_id, candidate_id, icon_score, name_score, certificate_match,
               review_fraud_score, confidence, risk_level, reasons, status, detected_at, confirmed_at
        FROM detections
        WHERE ($1 = '' OR brand_id = $1)
          AND ($2 = '' OR risk_level = $2)
          AND ($3 = '' OR status = $3)
        ORDER BY confidence DESC, detected_at DESC
    `, f.BrandID, f.RiskLevel, f.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Detection
	for rows.Next() {
		var d domain.Detection
		if err := rows.Scan(&d.ID, &d.BrandID, &d.CandidateID, &d.IconScore, &d.NameScore,
			&d.CertificateMatch, &d.ReviewFraudScore, &d.Confidence, &d.RiskLevel, &d.Reasons,
			&d.Status, &d.DetectedAt, &d.ConfirmedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) UpdateDetectionStatus(ctx context.Context, id, status string) error {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE detections
        SET status=$2,
            confirmed_at=CASE WHEN $2='confirmed' THEN now() ELSE confirmed_at END
        WHERE id=$1
    `, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// jsonList keeps empty slices as [] rather than null in jsonb columns.
func jsonList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return genID()
}
