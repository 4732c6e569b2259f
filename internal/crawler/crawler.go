// Package crawler harvests posts and engagement counters from account
// timelines into crawl_posts.
//
// The browser automation lives behind the PostSource interface so the crawl
// loop, counter parsing, and failure accounting stay testable without a
// Chrome process. Per-post and per-account failures are recorded in
// crawl_failures and never abort the batch.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/slidemine/internal/store"
)

// RawPost is a post as extracted by a PostSource, counters still unparsed.
// Empty counter strings mean the field was not found on the page.
type RawPost struct {
	PostID   string
	PostURL  string
	PostedAt *int64
	Caption  string
	Views    string
	Likes    string
	Comments string
	Shares   string
}

// Account is a resolved crawl target.
type Account struct {
	Handle     string
	ProfileURL string
}

// PostSource abstracts the platform access layer.
type PostSource interface {
	// ResolveAccount canonicalizes an identifier into a handle and profile URL.
	ResolveAccount(ctx context.Context, ident string) (*Account, error)
	// CollectPostURLs scrolls the profile timeline and returns up to maxPosts
	// post URLs, newest first.
	CollectPostURLs(ctx context.Context, acct *Account, maxPosts int) ([]string, error)
	// FetchPost opens one post page and extracts its raw fields.
	FetchPost(ctx context.Context, postURL string) (*RawPost, error)
}

// DefaultMaxPosts is the stock per-account post cap.
const DefaultMaxPosts = 25

// Confidence levels for extracted engagement counters.
const (
	confidenceNone  = 0.55 // no engagement fields found
	confidenceSome  = 0.8  // at least one non-zero field
	confidenceSolid = 0.9  // both views and likes present
)

// Crawler runs the account loop against a PostSource.
type Crawler struct {
	store  *store.Store
	source PostSource
	logger *slog.Logger
}

// New creates a Crawler.
func New(st *store.Store, source PostSource, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{store: st, source: source, logger: logger}
}

// Summary reports one crawl batch.
type Summary struct {
	Accounts   int `json:"accounts"`
	PostsSeen  int `json:"posts_seen"`
	PostsSaved int `json:"posts_saved"`
	Failures   int `json:"failures"`
}

// Run crawls every identifier. Nothing below the accounts count is fatal:
// account resolution and post extraction failures are logged and recorded,
// and the loop moves on. Only context cancellation stops the batch early.
func (c *Crawler) Run(ctx context.Context, idents []string, maxPosts int) (*Summary, error) {
	if maxPosts <= 0 {
		maxPosts = DefaultMaxPosts
	}

	summary := &Summary{}
	for _, ident := range idents {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Accounts++
		c.crawlAccount(ctx, ident, maxPosts, summary)
	}

	c.logger.Info("crawler: batch complete",
		"accounts", summary.Accounts, "posts_seen", summary.PostsSeen,
		"posts_saved", summary.PostsSaved, "failures", summary.Failures)
	return summary, nil
}

func (c *Crawler) crawlAccount(ctx context.Context, ident string, maxPosts int, summary *Summary) {
	acct, err := c.source.ResolveAccount(ctx, ident)
	if err != nil {
		c.recordFailure(ctx, summary, ident, "", fmt.Sprintf("resolve account: %v", err))
		return
	}

	urls, err := c.source.CollectPostURLs(ctx, acct, maxPosts)
	if err != nil {
		c.recordFailure(ctx, summary, acct.Handle, acct.ProfileURL,
			fmt.Sprintf("collect timeline: %v", err))
		return
	}

	for _, postURL := range urls {
		if ctx.Err() != nil {
			return
		}
		summary.PostsSeen++

		raw, err := c.source.FetchPost(ctx, postURL)
		if err != nil {
			c.recordFailure(ctx, summary, acct.Handle, postURL,
				fmt.Sprintf("fetch post: %v", err))
			continue
		}

		post := c.buildPost(acct, raw)
		if err := c.store.UpsertCrawlPost(ctx, post); err != nil {
			c.recordFailure(ctx, summary, acct.Handle, postURL,
				fmt.Sprintf("save post: %v", err))
			continue
		}
		summary.PostsSaved++
	}
}

// buildPost parses counters and assigns the extraction confidence.
func (c *Crawler) buildPost(acct *Account, raw *RawPost) *store.CrawlPost {
	post := &store.CrawlPost{
		PostID:        raw.PostID,
		PostURL:       raw.PostURL,
		AccountHandle: acct.Handle,
		PostedAt:      raw.PostedAt,
		Caption:       CleanCaption(raw.Caption),
		Views:         ParseCount(raw.Views),
		Likes:         ParseCount(raw.Likes),
		Comments:      ParseCount(raw.Comments),
		Shares:        ParseCount(raw.Shares),
		CollectedAt:   time.Now().UnixMilli(),
		Source:        "browser",
	}

	switch {
	case raw.Views != "" && raw.Likes != "":
		post.Confidence = confidenceSolid
	case post.Views > 0 || post.Likes > 0 || post.Comments > 0 || post.Shares > 0:
		post.Confidence = confidenceSome
	default:
		post.Confidence = confidenceNone
	}
	return post
}

func (c *Crawler) recordFailure(ctx context.Context, summary *Summary, handle, postURL, reason string) {
	summary.Failures++
	c.logger.Warn("crawler: failure", "account", handle, "url", postURL, "reason", reason)
	if err := c.store.InsertCrawlFailure(ctx, &store.CrawlFailure{
		AccountHandle: handle,
		PostURL:       postURL,
		Reason:        reason,
	}); err != nil {
		c.logger.Error("crawler: failure row not recorded", "error", err)
	}
}
