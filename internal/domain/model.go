package domain

import "time"

// Core domain models used internally. The HTTP adapter maps these to its own
// request/response shapes; keep these decoupled from wire formats.

// RiskLevel buckets a confidence or fraud score into a discrete tier.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// Scan job lifecycle: pending -> running -> completed|failed.
const (
	ScanPending   = "pending"
	ScanRunning   = "running"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

// Detection lifecycle: pending -> confirmed|false_positive.
const (
	DetectionPending       = "pending"
	DetectionConfirmed     = "confirmed"
	DetectionFalsePositive = "false_positive"
)

// Brand is the legitimate-app reference record impersonations are measured
// against. Immutable for the duration of a scan.
type Brand struct {
	ID            string
	Name          string
	PackageIDs    []string
	IconURLs      []string
	DeveloperName string
	Certificates  []string // known-good certificate fingerprints
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Candidate is an app record observed on a marketplace, not yet classified.
// Re-observations update the mutable fields (latest wins); FirstSeen is kept.
type Candidate struct {
	ID                     string
	PackageID              string
	AppName                string
	DeveloperName          string
	IconURL                string
	ScreenshotURLs         []string
	StoreURL               string
	Source                 string
	DownloadCount          int64
	Rating                 float64
	ReviewsCount           int
	CertificateFingerprint string
	FirstSeen              time.Time
	LastChecked            time.Time
}

// Review is one user review from a candidate's marketplace listing.
// Date is zero when the source date could not be parsed.
type Review struct {
	Text   string
	Rating int
	Date   time.Time
	Author string
}

// CertificateInfo is an opaque signing-certificate descriptor extracted from
// a candidate package by an external capability.
type CertificateInfo struct {
	MD5          string
	SHA1         string
	SHA256       string
	Issuer       string
	Subject      string
	ValidFrom    *time.Time
	ValidTo      *time.Time
	SerialNumber string
}

// DetectorOutcome is one detector's verdict for a (brand, candidate) pair:
// a score in [0,1] plus human-readable evidence strings.
type DetectorOutcome struct {
	Score   float64
	Reasons []string
}

// Detection is a persisted impersonation verdict. At most one active
// detection exists per (brand, candidate) pair; re-detection updates it.
type Detection struct {
	ID               string
	BrandID          string
	CandidateID      string
	IconScore        float64
	NameScore        float64
	CertificateMatch bool
	ReviewFraudScore float64
	Confidence       float64
	RiskLevel        RiskLevel
	Reasons          []string
	Status           string
	DetectedAt       time.Time
	ConfirmedAt      *time.Time
}

// ScanJob models one orchestration run over a brand and a set of sources.
type ScanJob struct {
	ID              string
	BrandID         string
	Sources         []string
	Status          string
	AppsScanned     int
	DetectionsFound int
	ErrorMessage    *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}
