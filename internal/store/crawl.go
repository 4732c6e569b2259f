package store

import (
	"context"
	"database/sql"
	"time"
)

// UpsertCrawlPost inserts or fully overwrites a post keyed by post_id.
// Re-crawling the same post replaces its counters and caption.
func (s *Store) UpsertCrawlPost(ctx context.Context, p *CrawlPost) error {
	if p.CollectedAt == 0 {
		p.CollectedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO crawl_posts (post_id, post_url, account_handle, posted_at, caption,
		views, likes, comments, shares, collected_at, source, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
		    post_url = excluded.post_url,
		    account_handle = excluded.account_handle,
		    posted_at = excluded.posted_at,
		    caption = excluded.caption,
		    views = excluded.views,
		    likes = excluded.likes,
		    comments = excluded.comments,
		    shares = excluded.shares,
		    collected_at = excluded.collected_at,
		    source = excluded.source,
		    confidence = excluded.confidence`,
		p.PostID, p.PostURL, p.AccountHandle, p.PostedAt, nullString(p.Caption),
		p.Views, p.Likes, p.Comments, p.Shares, p.CollectedAt, p.Source, p.Confidence,
	)
	return err
}

// GetCrawlPost retrieves a post by ID. Returns nil when absent.
func (s *Store) GetCrawlPost(ctx context.Context, postID string) (*CrawlPost, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT post_id, post_url, account_handle, posted_at, caption,
		views, likes, comments, shares, collected_at, source, confidence
		FROM crawl_posts WHERE post_id = ?`, postID)
	p, err := scanCrawlPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListCrawlPosts returns all posts in crawl order.
func (s *Store) ListCrawlPosts(ctx context.Context) ([]*CrawlPost, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT post_id, post_url, account_handle, posted_at, caption,
		views, likes, comments, shares, collected_at, source, confidence
		FROM crawl_posts ORDER BY collected_at, post_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*CrawlPost
	for rows.Next() {
		p, err := scanCrawlPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountCrawlPosts returns the total number of stored posts.
func (s *Store) CountCrawlPosts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_posts`).Scan(&n)
	return n, err
}

// InsertCrawlFailure appends one diagnostic failure record.
func (s *Store) InsertCrawlFailure(ctx context.Context, f *CrawlFailure) error {
	if f.CollectedAt == 0 {
		f.CollectedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO crawl_failures (account_handle, post_url, reason, collected_at)
		VALUES (?, ?, ?, ?)`,
		f.AccountHandle, f.PostURL, f.Reason, f.CollectedAt,
	)
	return err
}

// ListCrawlFailures returns failures, most recent first.
func (s *Store) ListCrawlFailures(ctx context.Context, limit int) ([]*CrawlFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT account_handle, post_url, reason, collected_at
		FROM crawl_failures ORDER BY collected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []*CrawlFailure
	for rows.Next() {
		f := &CrawlFailure{}
		if err := rows.Scan(&f.AccountHandle, &f.PostURL, &f.Reason, &f.CollectedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// CountCrawlFailures returns the total number of failure records.
func (s *Store) CountCrawlFailures(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_failures`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrawlPost(r rowScanner) (*CrawlPost, error) {
	p := &CrawlPost{}
	var caption sql.NullString
	err := r.Scan(&p.PostID, &p.PostURL, &p.AccountHandle, &p.PostedAt, &caption,
		&p.Views, &p.Likes, &p.Comments, &p.Shares, &p.CollectedAt, &p.Source, &p.Confidence)
	if err != nil {
		return nil, err
	}
	p.Caption = caption.String
	return p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
