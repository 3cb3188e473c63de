package detectors

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/corona10/goimagehash"
)

// ImageFetcher retrieves the bytes behind an icon reference.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FeatureExtractor produces a deep-feature embedding for an image. It is an
// optional capability: a nil extractor degrades scoring to hash-only, with
// the hash weights renormalized.
type FeatureExtractor interface {
	Extract(ctx context.Context, img image.Image) ([]float64, error)
}

// Blend weights when every signal is available. Missing signals drop out and
// the remaining weights are renormalized.
const (
	perceptionWeight = 0.4
	deepWeight       = 0.4
	averageWeight    = 0.2
)

// IconDetector computes perceptual similarity between two icons. Unreachable
// or undecodable images score 0.0; the caller never sees an error.
type IconDetector struct {
	fetcher   ImageFetcher
	extractor FeatureExtractor
}

func NewIconDetector(fetcher ImageFetcher, extractor FeatureExtractor) *IconDetector {
	return &IconDetector{fetcher: fetcher, extractor: extractor}
}

// Compare fetches and decodes both icon references and returns their
// similarity in [0,1], rounded to 4 decimals.
func (d *IconDetector) Compare(ctx context.Context, refA, refB string) float64 {
	imgA := d.load(ctx, refA)
	imgB := d.load(ctx, refB)
	if imgA == nil || imgB == nil {
		return 0.0
	}
	return d.CompareImages(ctx, imgA, imgB)
}

// CompareImages scores two already-decoded images.
func (d *IconDetector) CompareImages(ctx context.Context, a, b image.Image) float64 {
	var weightSum, scoreSum float64

	if s, ok := hashSimilarity(goimagehash.PerceptionHash, a, b); ok {
		weightSum += perceptionWeight
		scoreSum += perceptionWeight * s
	}
	if s, ok := hashSimilarity(goimagehash.AverageHash, a, b); ok {
		weightSum += averageWeight
		scoreSum += averageWeight * s
	}
	if s, ok := d.deepSimilarity(ctx, a, b); ok {
		weightSum += deepWeight
		scoreSum += deepWeight * s
	}

	if weightSum == 0 {
		return 0.0
	}
	return round4(scoreSum / weightSum)
}

func (d *IconDetector) load(ctx context.Context, ref string) image.Image {
	if d.fetcher == nil || ref == "" {
		return nil
	}
	raw, err := d.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return img
}

func (d *IconDetector) deepSimilarity(ctx context.Context, a, b image.Image) (float64, bool) {
	if d.extractor == nil {
		return 0, false
	}
	fa, err := d.extractor.Extract(ctx, a)
	if err != nil {
		return 0, false
	}
	fb, err := d.extractor.Extract(ctx, b)
	if err != nil {
		return 0, false
	}
	return cosineSimilarity(fa, fb)
}

// hashSimilarity normalizes a 64-bit Hamming distance to 1 - distance/64,
// floored at 0.
func hashSimilarity(hashFn func(image.Image) (*goimagehash.ImageHash, error), a, b image.Image) (float64, bool) {
	ha, err := hashFn(a)
	if err != nil {
		return 0, false
	}
	hb, err := hashFn(b)
	if err != nil {
		return 0, false
	}
	dist, err := ha.Distance(hb)
	if err != nil {
		return 0, false
	}
	s := 1.0 - float64(dist)/64.0
	if s < 0 {
		s = 0
	}
	return s, true
}

func cosineSimilarity(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
