// Package scorer aggregates matched posts into a proxy virality score per
// (format, account) pair.
//
// Views are z-scored within each account so a 50k-follower account and a 5M
// one land on the same scale, then combined with per-1000 engagement ratios
// through a diminishing-returns squash so one viral outlier cannot dominate.
package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/hazyhaar/slidemine/internal/store"
)

// Weights combines the four squashed metrics into the proxy score. The
// values are heuristic constants carried over unchanged from the original
// tuning; they are configurable, not re-derived.
type Weights struct {
	NormalizedViews float64 `yaml:"normalized_views"`
	SharesPer1k     float64 `yaml:"shares_per_1k"`
	CommentsPer1k   float64 `yaml:"comments_per_1k"`
	LikesPer1k      float64 `yaml:"likes_per_1k"`
}

// DefaultWeights is the stock 0.40/0.30/0.15/0.15 combination.
func DefaultWeights() Weights {
	return Weights{
		NormalizedViews: 0.40,
		SharesPer1k:     0.30,
		CommentsPer1k:   0.15,
		LikesPer1k:      0.15,
	}
}

// Scale divisors applied before squashing the per-1k ratios.
const (
	sharesScale   = 20.0
	commentsScale = 20.0
	likesScale    = 100.0
)

// Scorer recomputes format_scores from matched posts.
type Scorer struct {
	store   *store.Store
	weights Weights
	logger  *slog.Logger
}

// New creates a Scorer. Zero weights fall back to DefaultWeights.
func New(st *store.Store, weights Weights, logger *slog.Logger) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{store: st, weights: weights, logger: logger}
}

// Summary reports one scoring run.
type Summary struct {
	MatchedPosts int `json:"matched_posts"`
	Accounts     int `json:"accounts"`
	Pairs        int `json:"pairs"`
}

// Run recomputes every (format, account) score from scratch and replaces the
// format_scores table wholesale.
func (s *Scorer) Run(ctx context.Context) (*Summary, error) {
	matched, err := s.store.ListMatchedPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matched posts: %w", err)
	}

	// Per-account view statistics first: mu and sample sigma.
	byAccount := make(map[string][]*store.MatchedPost)
	for _, mp := range matched {
		byAccount[mp.Post.AccountHandle] = append(byAccount[mp.Post.AccountHandle], mp)
	}
	type viewStats struct{ mu, sigma float64 }
	stats := make(map[string]viewStats, len(byAccount))
	for handle, posts := range byAccount {
		stats[handle] = viewStats{
			mu:    meanViews(posts),
			sigma: stddevViews(posts),
		}
	}

	// Then per (format, account) aggregation.
	type key struct{ format, account string }
	groups := make(map[key][]*store.MatchedPost)
	var order []key
	for _, mp := range matched {
		k := key{mp.FormatName, mp.Post.AccountHandle}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], mp)
	}

	scores := make([]*store.FormatScore, 0, len(groups))
	for _, k := range order {
		posts := groups[k]
		st := stats[k.account]

		var sumNorm, sumShares, sumComments, sumLikes float64
		for _, mp := range posts {
			p := mp.Post
			if st.sigma > 0 {
				sumNorm += (float64(p.Views) - st.mu) / st.sigma
			}
			denom := math.Max(1, float64(p.Views))
			sumShares += float64(p.Shares) / denom * 1000
			sumComments += float64(p.Comments) / denom * 1000
			sumLikes += float64(p.Likes) / denom * 1000
		}
		n := float64(len(posts))
		sc := &store.FormatScore{
			FormatName:      k.format,
			AccountHandle:   k.account,
			NormalizedViews: sumNorm / n,
			SharesPer1k:     sumShares / n,
			CommentsPer1k:   sumComments / n,
			LikesPer1k:      sumLikes / n,
			SampleSize:      len(posts),
		}
		sc.ProxyScore = s.weights.NormalizedViews*Squash(sc.NormalizedViews) +
			s.weights.SharesPer1k*Squash(sc.SharesPer1k/sharesScale) +
			s.weights.CommentsPer1k*Squash(sc.CommentsPer1k/commentsScale) +
			s.weights.LikesPer1k*Squash(sc.LikesPer1k/likesScale)
		scores = append(scores, sc)
	}

	if err := s.store.ReplaceScores(ctx, scores); err != nil {
		return nil, fmt.Errorf("replace scores: %w", err)
	}

	summary := &Summary{
		MatchedPosts: len(matched),
		Accounts:     len(byAccount),
		Pairs:        len(scores),
	}
	s.logger.Info("scorer: run complete",
		"matched_posts", summary.MatchedPosts, "accounts", summary.Accounts,
		"pairs", summary.Pairs)
	return summary, nil
}

// Squash maps x monotonically into [0,1): 0 for x ≤ 0, else x/(1+x).
func Squash(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (1 + x)
}

func meanViews(posts []*store.MatchedPost) float64 {
	var sum float64
	for _, mp := range posts {
		sum += float64(mp.Post.Views)
	}
	return sum / float64(len(posts))
}

// stddevViews is the sample standard deviation (n−1); 0 with fewer than two
// samples.
func stddevViews(posts []*store.MatchedPost) float64 {
	n := len(posts)
	if n < 2 {
		return 0
	}
	mu := meanViews(posts)
	var ss float64
	for _, mp := range posts {
		d := float64(mp.Post.Views) - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}
