package detectors

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"brandguard/internal/domain"
)

// Confusable-character substitutions used in typosquatting. Keys are the
// Latin characters as they appear in a legitimate name; values are the
// look-alikes counterfeits swap in.
var charSubstitutions = map[string][]string{
	"o": {"0", "ο", "о"},  // zero, Greek omicron, Cyrillic o
	"a": {"α", "а"},       // Greek alpha, Cyrillic a
	"i": {"1", "l", "ı"},  // one, lowercase L, dotless i
	"e": {"ε", "е"},       // Greek epsilon, Cyrillic e
	"m": {"rn"},
	"w": {"vv"},
}

var (
	leadingFiller  = regexp.MustCompile(`^(the|app|official|real|new|pro|plus|lite)\s+`)
	trailingFiller = regexp.MustCompile(`\s+(app|application|apk|free|pro|plus|lite|beta)$`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]`)
	tokenSplit     = regexp.MustCompile(`[^a-z0-9]+`)
)

// NameDetector scores how confusable a candidate app name or package
// identifier is with a brand's. Pure function of its inputs; safe for
// concurrent use.
type NameDetector struct{}

func NewNameDetector() *NameDetector { return &NameDetector{} }

// Normalize lowercases, strips leading/trailing filler words, and removes
// everything outside [a-z0-9].
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = leadingFiller.ReplaceAllString(s, "")
	s = trailingFiller.ReplaceAllString(s, "")
	return nonAlnum.ReplaceAllString(s, "")
}

// compact lowercases, strips filler words, and drops whitespace and
// punctuation while keeping every letter and digit, Latin or not.
func compact(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = leadingFiller.ReplaceAllString(s, "")
	s = trailingFiller.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Compare scores the similarity of two app names. It never fails: empty or
// degenerate input yields score 0 with an explanatory reason. Symmetric in
// string content, not caller order.
func (d *NameDetector) Compare(legitimate, candidate string) domain.DetectorOutcome {
	normLegit := Normalize(legitimate)
	normCand := Normalize(candidate)

	if normLegit == "" || normCand == "" {
		return domain.DetectorOutcome{Reasons: []string{"empty name after normalization"}}
	}
	if normLegit == normCand {
		return domain.DetectorOutcome{Score: 1.0, Reasons: []string{"exact match after normalization"}}
	}
	// The typosquat checks run on a compact form that keeps non-Latin
	// runes; Normalize would strip the very look-alikes they detect.
	if out, ok := detectTyposquat(compact(legitimate), compact(candidate)); ok {
		return out
	}

	edit := editSimilarity(normLegit, normCand)
	token := tokenOverlap(legitimate, candidate)
	partial := partialSimilarity(normLegit, normCand)
	lcs := lcsSimilarity(normLegit, normCand)

	score := 0.30*edit + 0.30*token + 0.20*partial + 0.20*lcs

	var reasons []string
	if edit > 0.85 {
		reasons = append(reasons, fmt.Sprintf("high edit-distance similarity: %.2f", edit))
	}
	if token > 0.85 {
		reasons = append(reasons, fmt.Sprintf("high token overlap: %.2f", token))
	}
	if partial > 0.90 {
		reasons = append(reasons, fmt.Sprintf("strong partial match: %.2f", partial))
	}
	if strings.Contains(normLegit, normCand) || strings.Contains(normCand, normLegit) {
		if score < 0.80 {
			score = 0.80
		}
		reasons = append(reasons, "one name contains the other")
	}
	return domain.DetectorOutcome{Score: round4(score), Reasons: reasons}
}

// ComparePackages is the stricter package-identifier comparator: identifiers
// are split on "." and per-segment edit similarity is averaged. Not blended
// with name similarity; callers pick whichever fits their evidence need.
func (d *NameDetector) ComparePackages(legitimate, candidate string) domain.DetectorOutcome {
	legitParts := strings.Split(legitimate, ".")
	candParts := strings.Split(candidate, ".")

	var reasons []string
	if len(legitParts) != len(candParts) {
		reasons = append(reasons, "different package structure")
	}

	n := len(legitParts)
	if len(candParts) < n {
		n = len(candParts)
	}
	var sum float64
	for i := 0; i < n; i++ {
		if legitParts[i] == candParts[i] {
			sum += 1.0
			continue
		}
		s := editSimilarity(legitParts[i], candParts[i])
		sum += s
		if s > 0.8 {
			reasons = append(reasons, fmt.Sprintf("similar package segment: %s ~ %s", legitParts[i], candParts[i]))
		}
	}
	if n == 0 {
		return domain.DetectorOutcome{Reasons: reasons}
	}
	return domain.DetectorOutcome{Score: round4(sum / float64(n)), Reasons: reasons}
}

// detectTyposquat runs the short-circuit checks of the name comparison:
// confusable-character substitution (0.95), single-character substitution
// (0.90) and adjacent transposition (0.88). The substitution test is
// evaluated in both directions so Compare stays symmetric.
func detectTyposquat(a, b string) (domain.DetectorOutcome, bool) {
	if reason, ok := substitutionMatch(a, b); ok {
		return domain.DetectorOutcome{Score: 0.95, Reasons: []string{reason}}, true
	}
	if reason, ok := substitutionMatch(b, a); ok {
		return domain.DetectorOutcome{Score: 0.95, Reasons: []string{reason}}, true
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) != len(rb) {
		return domain.DetectorOutcome{}, false
	}

	diff := 0
	for i := range ra {
		if ra[i] != rb[i] {
			diff++
		}
	}
	if diff == 1 {
		return domain.DetectorOutcome{Score: 0.90, Reasons: []string{"single character difference"}}, true
	}

	for i := 0; i < len(ra)-1; i++ {
		if ra[i] == rb[i+1] && ra[i+1] == rb[i] &&
			string(ra[:i]) == string(rb[:i]) && string(ra[i+2:]) == string(rb[i+2:]) {
			return domain.DetectorOutcome{
				Score:   0.88,
				Reasons: []string{fmt.Sprintf("character transposition at position %d", i)},
			}, true
		}
	}
	return domain.DetectorOutcome{}, false
}

// substitutionMatch reports whether replacing look-alike characters in cand
// with their Latin originals yields legit.
func substitutionMatch(legit, cand string) (string, bool) {
	for ch, subs := range charSubstitutions {
		if !strings.Contains(legit, ch) {
			continue
		}
		for _, sub := range subs {
			if !strings.Contains(cand, sub) {
				continue
			}
			if strings.ReplaceAll(cand, sub, ch) == legit {
				return fmt.Sprintf("character substitution: %q in place of %q", sub, ch), true
			}
		}
	}
	return "", false
}

func editSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// tokenOverlap is a Sørensen–Dice ratio over word tokens of the raw names.
func tokenOverlap(a, b string) float64 {
	ta := splitTokens(a)
	tb := splitTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ta))
	for _, t := range ta {
		counts[t]++
	}
	common := 0
	for _, t := range tb {
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}
	return 2.0 * float64(common) / float64(len(ta)+len(tb))
}

func splitTokens(s string) []string {
	var out []string
	for _, t := range tokenSplit.Split(strings.ToLower(s), -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// partialSimilarity is the best edit similarity of the shorter string
// against every same-length window of the longer one.
func partialSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		s := editSimilarity(string(ra), string(rb[i:i+len(ra)]))
		if s > best {
			best = s
		}
	}
	return best
}

// lcsSimilarity is 2*LCS(a,b) / (len(a)+len(b)).
func lcsSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1.0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2.0 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}
