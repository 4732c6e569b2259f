// Package report summarizes pipeline state across every table: corpus size,
// crawl volume, match statuses, top-scoring formats, draft and export counts.
package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/hazyhaar/slidemine/internal/store"
)

// TopFormatLimit caps the ranked formats section.
const TopFormatLimit = 10

// Report is the aggregated pipeline snapshot, JSON-ready.
type Report struct {
	Posts           int                   `json:"posts"`
	CrawlFailures   int                   `json:"crawl_failures"`
	Formats         int                   `json:"formats"`
	MatchesByStatus map[string]int        `json:"matches_by_status"`
	ScoredPairs     int                   `json:"scored_pairs"`
	TopFormats      []RankedFormat        `json:"top_formats"`
	Drafts          int                   `json:"drafts"`
	Exports         int                   `json:"exports"`
	RecentFailures  []*store.CrawlFailure `json:"recent_failures,omitempty"`
}

// RankedFormat is one row of the top-formats section.
type RankedFormat struct {
	FormatName    string  `json:"format_name"`
	AccountHandle string  `json:"account_handle"`
	ProxyScore    float64 `json:"proxy_score"`
	SampleSize    int     `json:"sample_size"`
}

// Build assembles the snapshot. Read-only.
func Build(ctx context.Context, st *store.Store) (*Report, error) {
	r := &Report{}
	var err error

	if r.Posts, err = st.CountCrawlPosts(ctx); err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	if r.CrawlFailures, err = st.CountCrawlFailures(ctx); err != nil {
		return nil, fmt.Errorf("count failures: %w", err)
	}
	if r.Formats, err = st.CountFormats(ctx); err != nil {
		return nil, fmt.Errorf("count formats: %w", err)
	}
	if r.MatchesByStatus, err = st.CountMatchesByStatus(ctx); err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}
	if r.ScoredPairs, err = st.CountScores(ctx); err != nil {
		return nil, fmt.Errorf("count scores: %w", err)
	}
	if r.Drafts, err = st.CountDrafts(ctx); err != nil {
		return nil, fmt.Errorf("count drafts: %w", err)
	}
	if r.Exports, err = st.CountExports(ctx); err != nil {
		return nil, fmt.Errorf("count exports: %w", err)
	}

	scores, err := st.ListScores(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].ProxyScore > scores[j].ProxyScore
	})
	for i, sc := range scores {
		if i == TopFormatLimit {
			break
		}
		r.TopFormats = append(r.TopFormats, RankedFormat{
			FormatName:    sc.FormatName,
			AccountHandle: sc.AccountHandle,
			ProxyScore:    sc.ProxyScore,
			SampleSize:    sc.SampleSize,
		})
	}

	if r.RecentFailures, err = st.ListCrawlFailures(ctx, 5); err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	return r, nil
}
