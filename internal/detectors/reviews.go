package detectors

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"brandguard/internal/domain"
)

// Fixed pattern tables, compiled once at process start.
var spamKeywords = []string{
	"best app ever", "amazing app", "must download", "five stars",
	"highly recommend", "download now", "great app", "perfect app",
	"best app", "awesome app", "fantastic", "wonderful",
}

var botPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(great|good|best|nice|cool)\s+(app|application)`),
	regexp.MustCompile(`(five|5)\s+star`),
	regexp.MustCompile(`highly\s+recommend`),
}

var genericPhrases = map[string]struct{}{
	"good": {}, "great": {}, "nice": {}, "cool": {}, "ok": {}, "okay": {},
	"fine": {}, "good app": {}, "nice app": {}, "love it": {}, "like it": {},
}

// ReviewIndicators is the per-signal breakdown of a review corpus analysis.
type ReviewIndicators struct {
	DuplicateReviews        int
	BotLikeReviews          int
	SuspiciousTiming        float64
	RatingManipulationScore float64
	LowEffortReviews        int
	TemplateReviews         int
}

// ReviewAnalysis is the full result of analyzing one candidate's reviews.
type ReviewAnalysis struct {
	TotalReviews int
	FraudScore   float64
	RiskLevel    domain.RiskLevel
	Indicators   ReviewIndicators
	Flags        []string
}

// ReviewFraudDetector analyzes a review corpus for synthetic, bot-generated
// or manipulated-rating patterns. Pure; safe for concurrent use.
type ReviewFraudDetector struct{}

func NewReviewFraudDetector() *ReviewFraudDetector { return &ReviewFraudDetector{} }

// Analyze computes all fraud indicators over the full review list. An empty
// list yields score 0.0 with tier UNKNOWN and no flags.
func (d *ReviewFraudDetector) Analyze(reviews []domain.Review) ReviewAnalysis {
	if len(reviews) == 0 {
		return ReviewAnalysis{RiskLevel: domain.RiskUnknown}
	}

	total := len(reviews)
	ind := ReviewIndicators{
		DuplicateReviews:        countDuplicates(reviews),
		BotLikeReviews:          countBotLike(reviews),
		SuspiciousTiming:        timingScore(reviews),
		RatingManipulationScore: ratingManipulation(reviews),
		LowEffortReviews:        countLowEffort(reviews),
		TemplateReviews:         countTemplates(reviews),
	}

	score := 0.25*cappedRatio(ind.DuplicateReviews, total) +
		0.25*cappedRatio(ind.BotLikeReviews, total) +
		0.15*ind.SuspiciousTiming +
		0.20*ind.RatingManipulationScore +
		0.10*cappedRatio(ind.LowEffortReviews, total) +
		0.05*cappedRatio(ind.TemplateReviews, total)
	score = round4(score)

	return ReviewAnalysis{
		TotalReviews: total,
		FraudScore:   score,
		RiskLevel:    fraudRisk(score),
		Indicators:   ind,
		Flags:        fraudFlags(ind),
	}
}

func cappedRatio(n, total int) float64 {
	r := float64(n) / float64(total)
	if r > 1.0 {
		return 1.0
	}
	return r
}

func fraudRisk(score float64) domain.RiskLevel {
	switch {
	case score >= 0.75:
		return domain.RiskCritical
	case score >= 0.60:
		return domain.RiskHigh
	case score >= 0.40:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// fraudFlags fires at fixed absolute thresholds, independent of the
// weighted score. Purely additive evidence.
func fraudFlags(ind ReviewIndicators) []string {
	var flags []string
	if ind.DuplicateReviews > 5 {
		flags = append(flags, "HIGH_DUPLICATE_COUNT")
	}
	if ind.BotLikeReviews > 10 {
		flags = append(flags, "BOT_LIKE_REVIEWS")
	}
	if ind.SuspiciousTiming > 0.5 {
		flags = append(flags, "SUSPICIOUS_TIMING_PATTERN")
	}
	if ind.RatingManipulationScore > 0.7 {
		flags = append(flags, "RATING_MANIPULATION")
	}
	if ind.LowEffortReviews > 15 {
		flags = append(flags, "MANY_LOW_EFFORT_REVIEWS")
	}
	if ind.TemplateReviews > 10 {
		flags = append(flags, "TEMPLATE_REVIEWS")
	}
	return flags
}

// countDuplicates counts exact-text repeats beyond the first occurrence.
func countDuplicates(reviews []domain.Review) int {
	counts := make(map[string]int, len(reviews))
	for _, r := range reviews {
		counts[strings.ToLower(strings.TrimSpace(r.Text))]++
	}
	dup := 0
	for _, c := range counts {
		if c > 1 {
			dup += c - 1
		}
	}
	return dup
}

func countBotLike(reviews []domain.Review) int {
	count := 0
	for _, r := range reviews {
		text := strings.ToLower(r.Text)
		if containsAny(text, spamKeywords) {
			count++
			continue
		}
		if matchesAny(text, botPatterns) {
			count++
			continue
		}
		if len(strings.Fields(text)) <= 3 && r.Rating == 5 {
			count++
		}
	}
	return count
}

// timingScore slides 24-hour windows over the sorted review dates. A window
// holding more than 20% of all reviews is a spike; the spike count is
// normalized by 5 and capped at 1.0. Needs at least 10 parseable dates.
func timingScore(reviews []domain.Review) float64 {
	var dates []time.Time
	for _, r := range reviews {
		if !r.Date.IsZero() {
			dates = append(dates, r.Date)
		}
	}
	if len(dates) < 10 {
		return 0.0
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	spikes := 0
	for i := 0; i < len(dates)-5; i++ {
		windowEnd := dates[i].Add(24 * time.Hour)
		inWindow := 0
		for j := i; j < len(dates) && !dates[j].After(windowEnd); j++ {
			inWindow++
		}
		if float64(inWindow) > float64(len(dates))*0.2 {
			spikes++
		}
	}
	return math.Min(float64(spikes)/5.0, 1.0)
}

func ratingManipulation(reviews []domain.Review) float64 {
	var ratings []int
	counts := make(map[int]int)
	for _, r := range reviews {
		if r.Rating > 0 {
			ratings = append(ratings, r.Rating)
			counts[r.Rating]++
		}
	}
	if len(ratings) == 0 {
		return 0.0
	}

	total := float64(len(ratings))
	fiveRatio := float64(counts[5]) / total

	// Bimodal distribution: many 5s and 1s, few in between.
	if len(ratings) > 20 {
		middleRatio := float64(counts[2]+counts[3]+counts[4]) / total
		oneRatio := float64(counts[1]) / total
		if middleRatio < 0.2 && (fiveRatio > 0.7 || oneRatio > 0.3) {
			return 0.8
		}
	}

	switch {
	case fiveRatio > 0.9:
		return 0.9
	case fiveRatio > 0.8:
		return 0.7
	case fiveRatio > 0.7:
		return 0.5
	default:
		return 0.0
	}
}

func countLowEffort(reviews []domain.Review) int {
	count := 0
	for _, r := range reviews {
		text := strings.ToLower(strings.TrimSpace(r.Text))
		if len(strings.Fields(text)) <= 2 {
			count++
			continue
		}
		if _, ok := genericPhrases[text]; ok {
			count++
		}
	}
	return count
}

// countTemplates groups reviews by their first three words; a group larger
// than max(10% of total, 3) contributes its full size.
func countTemplates(reviews []domain.Review) int {
	prefixes := make(map[string]int)
	for _, r := range reviews {
		words := strings.Fields(strings.ToLower(r.Text))
		if len(words) < 3 {
			continue
		}
		prefixes[strings.Join(words[:3], " ")]++
	}

	threshold := math.Max(float64(len(reviews))*0.1, 3)
	count := 0
	for _, c := range prefixes {
		if float64(c) > threshold {
			count += c
		}
	}
	return count
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
