package detectors

import "strings"

// Words counterfeit listings commonly bolt onto a brand name.
var suspiciousNameKeywords = []string{
	"update", "official", "pro", "premium", "secure", "verified",
	"original", "real", "authentic", "new", "latest", "free",
	"unlock", "mod", "hack", "cracked", "plus", "gold",
}

// SuspiciousKeywords returns the counterfeit-marker keywords present in an
// app name. Evidence only; not blended into any score.
func SuspiciousKeywords(appName string) []string {
	lower := strings.ToLower(appName)
	var found []string
	for _, k := range suspiciousNameKeywords {
		if strings.Contains(lower, k) {
			found = append(found, k)
		}
	}
	return found
}
