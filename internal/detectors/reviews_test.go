package detectors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"brandguard/internal/domain"
)

func TestAnalyzeEmptyCorpus(t *testing.T) {
	d := NewReviewFraudDetector()
	res := d.Analyze(nil)
	assert.Zero(t, res.FraudScore)
	assert.Equal(t, domain.RiskUnknown, res.RiskLevel)
	assert.Zero(t, res.TotalReviews)
	assert.Empty(t, res.Flags)
}

func TestAnalyzeOrganicCorpus(t *testing.T) {
	d := NewReviewFraudDetector()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reviews := []domain.Review{
		{Text: "works well for tracking my daily expenses", Rating: 4, Date: base},
		{Text: "the latest update broke fingerprint login", Rating: 2, Date: base.AddDate(0, 0, 30)},
		{Text: "decent interface but sync is slow sometimes", Rating: 3, Date: base.AddDate(0, 0, 60)},
		{Text: "transfers arrive faster than with my old bank", Rating: 5, Date: base.AddDate(0, 0, 90)},
		{Text: "support resolved my issue within a day", Rating: 5, Date: base.AddDate(0, 0, 120)},
	}
	res := d.Analyze(reviews)
	assert.Equal(t, 5, res.TotalReviews)
	assert.Less(t, res.FraudScore, 0.40)
	assert.Equal(t, domain.RiskLow, res.RiskLevel)
	assert.Empty(t, res.Flags)
}

func TestAnalyzeManufacturedCorpus(t *testing.T) {
	d := NewReviewFraudDetector()
	burst := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	reviews := make([]domain.Review, 20)
	for i := range reviews {
		reviews[i] = domain.Review{Text: "Best app ever must download", Rating: 5, Date: burst}
	}

	res := d.Analyze(reviews)
	assert.InDelta(t, 0.8675, res.FraudScore, 0.0001)
	assert.Equal(t, domain.RiskCritical, res.RiskLevel)

	assert.Equal(t, 19, res.Indicators.DuplicateReviews)
	assert.Equal(t, 20, res.Indicators.BotLikeReviews)
	assert.Equal(t, 1.0, res.Indicators.SuspiciousTiming)
	assert.InDelta(t, 0.9, res.Indicators.RatingManipulationScore, 0.0001)
	assert.Equal(t, 20, res.Indicators.TemplateReviews)

	assert.ElementsMatch(t, []string{
		"HIGH_DUPLICATE_COUNT",
		"BOT_LIKE_REVIEWS",
		"SUSPICIOUS_TIMING_PATTERN",
		"RATING_MANIPULATION",
		"TEMPLATE_REVIEWS",
	}, res.Flags)
}

func TestCountBotLike(t *testing.T) {
	reviews := []domain.Review{
		// spam keyword, bot pattern, short five-star, short two-star, organic
		{Text: "Best app ever, changed my life", Rating: 5},
		{Text: "great app for everyone", Rating: 4},
		{Text: "nice", Rating: 5},
		{Text: "nice", Rating: 2},
		{Text: "solid tool once you learn the shortcuts", Rating: 4},
	}
	assert.Equal(t, 3, countBotLike(reviews))
}

func TestTimingScore(t *testing.T) {
	burst := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	var clustered []domain.Review
	for i := 0; i < 12; i++ {
		clustered = append(clustered, domain.Review{Date: burst})
	}
	assert.Equal(t, 1.0, timingScore(clustered))

	var spread []domain.Review
	for i := 0; i < 12; i++ {
		spread = append(spread, domain.Review{Date: burst.AddDate(0, 0, 30*i)})
	}
	assert.Zero(t, timingScore(spread))

	// Too few dated reviews to judge.
	assert.Zero(t, timingScore(clustered[:9]))
}

func TestRatingManipulation(t *testing.T) {
	var bimodal []domain.Review
	for i := 0; i < 20; i++ {
		bimodal = append(bimodal, domain.Review{Rating: 5})
	}
	for i := 0; i < 4; i++ {
		bimodal = append(bimodal, domain.Review{Rating: 1})
	}
	bimodal = append(bimodal, domain.Review{Rating: 3})
	assert.InDelta(t, 0.8, ratingManipulation(bimodal), 0.0001)

	var balanced []domain.Review
	for r := 1; r <= 5; r++ {
		for i := 0; i < 4; i++ {
			balanced = append(balanced, domain.Review{Rating: r})
		}
	}
	assert.Zero(t, ratingManipulation(balanced))

	assert.Zero(t, ratingManipulation(nil))
}

func TestCountTemplates(t *testing.T) {
	var reviews []domain.Review
	for i := 0; i < 5; i++ {
		reviews = append(reviews, domain.Review{Text: fmt.Sprintf("this app is exactly what user %d wanted", i)})
	}
	for i := 0; i < 10; i++ {
		reviews = append(reviews, domain.Review{Text: fmt.Sprintf("reviewer%d says something different about it", i)})
	}
	// "this app is" appears 5 times, above max(1.5, 3).
	assert.Equal(t, 5, countTemplates(reviews))
}
