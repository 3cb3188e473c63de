package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brandguard/internal/domain"
	"brandguard/internal/ports"
)

func (db *DB) CreateJob(ctx context.Context, brandID string, sources []string) (string, error) {
	id := genID()
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO scan_jobs (id, brand_id, sources, status)
        VALUES ($1, $2, $3, 'pending')
    `, id, brandID, jsonList(sources))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (db *DB) GetJob(ctx context.Context, jobID string) (domain.ScanJob, error) {
	var j domain.ScanJob
	err := db.Pool.QueryRow(ctx, `
        SELECT id, brand_id, sources, status, apps_scanned, detections_found,
               error_message, created_at, started_at, completed_at
        FROM scan_jobs WHERE id=$1
    `, jobID).Scan(&j.ID, &j.BrandID, &j.Sources, &j.Status, &j.AppsScanned, &j.DetectionsFound,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return j, ports.ErrNotFound
	}
	return j, err
}

// ClaimNext selects the oldest pending job using SKIP LOCKED and marks it
// running in the same transaction, so concurrent workers never double-claim.
func (db *DB) ClaimNext(ctx context.Context) (job domain.ScanJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id, brand_id, sources FROM scan_jobs
        WHERE status = 'pending'
        ORDER BY created_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.BrandID, &job.Sources)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE scan_jobs SET status='running', started_at=now() WHERE id=$1
    `, job.ID); err != nil {
		return job, false, err
	}
	job.Status = domain.ScanRunning
	return job, true, nil
}

func (db *DB) UpdateCounters(ctx context.Context, jobID string, appsScanned, detectionsFound int) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE scan_jobs SET apps_scanned=$2, detections_found=$3 WHERE id=$1
    `, jobID, appsScanned, detectionsFound)
	return err
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, appsScanned, detectionsFound int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE scan_jobs
        SET status='completed', apps_scanned=$2, detections_found=$3, completed_at=now()
        WHERE id=$1
    `, jobID, appsScanned, detectionsFound)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE scan_jobs SET status='failed', error_message=$2, completed_at=now() WHERE id=$1
    `, jobID, reason)
	return err
}

func genID() string { return uuid.NewString() }
