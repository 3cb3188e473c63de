package detectors

import (
	"strings"

	"brandguard/internal/domain"
)

// Issuer/subject fragments of debug and development signing identities.
var debugCertPatterns = []string{
	"cn=android debug",
	"o=android",
	"androiddebugkey",
}

// Issuer keywords that flag a throwaway or impersonating signer.
var suspiciousIssuerKeywords = []string{
	"unknown", "test", "temp", "fake", "copy", "clone",
}

// CertificateAnalyzer verifies a candidate's signing certificate against a
// brand's known-good fingerprints and flags suspicious signing patterns.
// The certificate descriptor itself comes from an external extraction
// capability; the analyzer works on whatever descriptor it is handed.
type CertificateAnalyzer struct{}

func NewCertificateAnalyzer() *CertificateAnalyzer { return &CertificateAnalyzer{} }

// Verify reports whether the certificate fingerprint matches any known-good
// fingerprint. On a miss it accumulates heuristic evidence about the signer.
func (a *CertificateAnalyzer) Verify(cert *domain.CertificateInfo, knownGood []string) (bool, []string) {
	if cert == nil {
		return false, []string{"no certificate information available"}
	}

	for _, legit := range knownGood {
		if cert.SHA256 != "" && strings.EqualFold(cert.SHA256, legit) {
			return true, []string{"certificate matches legitimate app"}
		}
		if cert.SHA1 != "" && strings.EqualFold(cert.SHA1, legit) {
			return true, []string{"certificate matches legitimate app (SHA1)"}
		}
	}

	reasons := []string{"certificate does not match any known legitimate certificates"}
	if isDebugCertificate(cert) {
		reasons = append(reasons, "debug/development certificate")
	}
	if isSelfSigned(cert) {
		reasons = append(reasons, "self-signed certificate")
	}
	if hasSuspiciousIssuer(cert) {
		reasons = append(reasons, "suspicious certificate issuer")
	}
	return false, reasons
}

// CompareCertificates scores two descriptors: 1.0 on a digest match, else 0.
func (a *CertificateAnalyzer) CompareCertificates(c1, c2 *domain.CertificateInfo) float64 {
	if c1 == nil || c2 == nil {
		return 0.0
	}
	if c1.SHA256 != "" && strings.EqualFold(c1.SHA256, c2.SHA256) {
		return 1.0
	}
	if c1.SHA1 != "" && strings.EqualFold(c1.SHA1, c2.SHA1) {
		return 1.0
	}
	return 0.0
}

// SigningAnalysis is the informational risk assessment of a signer,
// independent of the Verify boolean.
type SigningAnalysis struct {
	RiskScore    float64
	Flags        []string
	IsLegitimate bool
}

// AnalyzeSigningPattern scores how suspicious the signing identity looks:
// +0.4 for a debug certificate, +0.3 for a suspicious issuer, capped at 1.0.
func (a *CertificateAnalyzer) AnalyzeSigningPattern(cert *domain.CertificateInfo) SigningAnalysis {
	if cert == nil {
		return SigningAnalysis{IsLegitimate: true}
	}

	var risk float64
	var flags []string
	if isDebugCertificate(cert) {
		risk += 0.4
		flags = append(flags, "DEBUG_CERTIFICATE")
	}
	if hasSuspiciousIssuer(cert) {
		risk += 0.3
		flags = append(flags, "SUSPICIOUS_ISSUER")
	}
	if risk > 1.0 {
		risk = 1.0
	}
	return SigningAnalysis{
		RiskScore:    risk,
		Flags:        flags,
		IsLegitimate: risk < 0.3,
	}
}

func isDebugCertificate(cert *domain.CertificateInfo) bool {
	issuer := strings.ToLower(cert.Issuer)
	subject := strings.ToLower(cert.Subject)
	for _, p := range debugCertPatterns {
		if strings.Contains(issuer, p) || strings.Contains(subject, p) {
			return true
		}
	}
	return false
}

func isSelfSigned(cert *domain.CertificateInfo) bool {
	return cert.Issuer != "" && cert.Issuer == cert.Subject
}

func hasSuspiciousIssuer(cert *domain.CertificateInfo) bool {
	issuer := strings.ToLower(cert.Issuer)
	for _, k := range suspiciousIssuerKeywords {
		if strings.Contains(issuer, k) {
			return true
		}
	}
	return false
}
