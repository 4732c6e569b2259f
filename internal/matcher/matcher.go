// Package matcher assigns every crawled post its best-guess format.
//
// The algorithm is deliberately not a model: one deterministic pass over
// posts × formats, scoring caption-token Jaccard similarity against each
// format's fingerprint plus a structural prior on slide count. Deterministic
// scoring keeps every match auditable from its recorded reasons.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/hazyhaar/slidemine/internal/store"
)

// DefaultThreshold is the confidence floor below which a post is parked for
// human review instead of auto-matched.
const DefaultThreshold = 0.4

// Score combination weights. Text similarity dominates; the structural prior
// only breaks ties between textually similar formats.
const (
	textWeight       = 0.75
	structuralWeight = 0.25
)

// Structural prior targets: posts with dense engagement tend to be short
// punchy slideshows, low-density posts longer explainers. Heuristic
// constants carried over unchanged from the original tuning.
const (
	denseSlideTarget  = 5.0
	sparseSlideTarget = 7.0
	densityCutoff     = 0.08
)

// fingerprint aggregates one format for similarity scoring.
type fingerprint struct {
	name         string
	tokens       map[string]struct{}
	avgSlides    float64
	firstExample string
}

// Matcher scores crawled posts against format fingerprints.
type Matcher struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Matcher.
func New(st *store.Store, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{store: st, logger: logger}
}

// Summary reports one matching run.
type Summary struct {
	Posts       int     `json:"posts"`
	AutoMatched int     `json:"auto_matched"`
	NeedsReview int     `json:"needs_review"`
	Threshold   float64 `json:"threshold"`
}

// Run produces exactly one PostFormatMatch per crawled post, overwriting any
// prior match. Posts scoring below threshold get needs_review with null
// format/example.
func (m *Matcher) Run(ctx context.Context, threshold float64) (*Summary, error) {
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	fps, err := m.buildFingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("build fingerprints: %w", err)
	}

	posts, err := m.store.ListCrawlPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	summary := &Summary{Posts: len(posts), Threshold: threshold}
	for _, post := range posts {
		match := m.matchPost(post, fps, threshold)
		if err := m.store.UpsertMatch(ctx, match); err != nil {
			return nil, fmt.Errorf("upsert match %s: %w", post.PostID, err)
		}
		if match.Status == store.StatusAutoMatched {
			summary.AutoMatched++
		} else {
			summary.NeedsReview++
		}
	}

	m.logger.Info("matcher: run complete",
		"posts", summary.Posts, "auto_matched", summary.AutoMatched,
		"needs_review", summary.NeedsReview, "threshold", threshold)
	return summary, nil
}

// buildFingerprints folds the whole corpus into one fingerprint per format:
// the token set of every slide's OCR text plus the format name, and the mean
// slide count across examples.
func (m *Matcher) buildFingerprints(ctx context.Context) ([]*fingerprint, error) {
	examples, err := m.store.ListFormatExamples(ctx)
	if err != nil {
		return nil, err
	}
	slides, err := m.store.ListFormatSlides(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*fingerprint)
	for _, ex := range examples {
		fp, ok := byName[ex.FormatName]
		if !ok {
			fp = &fingerprint{
				name:         ex.FormatName,
				tokens:       Tokenize(ex.FormatName),
				firstExample: ex.ExampleID,
			}
			byName[ex.FormatName] = fp
		}
		// Running mean over examples; examples arrive ordered so the first
		// example id is the minimum.
		fp.avgSlides += float64(ex.SlideCount)
		if ex.ExampleID < fp.firstExample {
			fp.firstExample = ex.ExampleID
		}
	}
	counts := make(map[string]int)
	for _, ex := range examples {
		counts[ex.FormatName]++
	}
	for name, fp := range byName {
		fp.avgSlides /= float64(counts[name])
	}

	for _, sl := range slides {
		fp, ok := byName[sl.FormatName]
		if !ok || sl.OCRText == nil {
			continue
		}
		for tok := range Tokenize(*sl.OCRText) {
			fp.tokens[tok] = struct{}{}
		}
	}

	fps := make([]*fingerprint, 0, len(byName))
	for _, fp := range byName {
		fps = append(fps, fp)
	}
	// Stable iteration order keeps re-runs byte-identical.
	sort.Slice(fps, func(i, j int) bool { return fps[i].name < fps[j].name })
	return fps, nil
}

// matchPost scores one post against every fingerprint and picks the best.
func (m *Matcher) matchPost(post *store.CrawlPost, fps []*fingerprint, threshold float64) *store.PostFormatMatch {
	captionTokens := Tokenize(post.Caption)
	target := slideTarget(post)

	var (
		best           *fingerprint
		bestConfidence float64
		bestText       float64
		bestStructural float64
	)
	for _, fp := range fps {
		text := Jaccard(captionTokens, fp.tokens)
		structural := structuralPrior(fp.avgSlides, target)
		confidence := clamp01(textWeight*text + structuralWeight*structural)
		if best == nil || confidence > bestConfidence {
			best = fp
			bestConfidence = confidence
			bestText = text
			bestStructural = structural
		}
	}

	match := &store.PostFormatMatch{
		PostID:     post.PostID,
		Confidence: bestConfidence,
		Status:     store.StatusNeedsReview,
	}
	if best != nil {
		match.Reasons = []string{
			fmt.Sprintf("text_similarity=%.3f vs %q", bestText, best.name),
			fmt.Sprintf("structural_prior=%.3f (avg_slides=%.1f target=%.0f)", bestStructural, best.avgSlides, target),
		}
	} else {
		match.Reasons = []string{"no formats in corpus"}
	}
	if best != nil && bestConfidence >= threshold {
		match.Status = store.StatusAutoMatched
		name := best.name
		example := best.firstExample
		match.FormatName = &name
		match.ExampleID = &example
	}
	return match
}

// slideTarget picks the structural-prior target from engagement density.
func slideTarget(post *store.CrawlPost) float64 {
	if engagementDensity(post) > densityCutoff {
		return denseSlideTarget
	}
	return sparseSlideTarget
}

// engagementDensity is (likes + comments + 2·shares) / views, 0 without views.
func engagementDensity(post *store.CrawlPost) float64 {
	if post.Views == 0 {
		return 0
	}
	return float64(post.Likes+post.Comments+2*post.Shares) / float64(post.Views)
}

func structuralPrior(avgSlides, target float64) float64 {
	d := avgSlides - target
	return math.Exp(-(d * d) / 9)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
