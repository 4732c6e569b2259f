package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertMatch inserts or fully overwrites the match for one post. Re-running
// the matcher replaces prior results row by row.
func (s *Store) UpsertMatch(ctx context.Context, m *PostFormatMatch) error {
	reasons, err := json.Marshal(m.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO post_format_matches (post_id, format_name, example_id, confidence, status, reasons_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
		    format_name = excluded.format_name,
		    example_id = excluded.example_id,
		    confidence = excluded.confidence,
		    status = excluded.status,
		    reasons_json = excluded.reasons_json`,
		m.PostID, m.FormatName, m.ExampleID, m.Confidence, m.Status, string(reasons),
	)
	return err
}

// GetMatch retrieves the match for one post. Returns nil when absent.
func (s *Store) GetMatch(ctx context.Context, postID string) (*PostFormatMatch, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT post_id, format_name, example_id, confidence, status, reasons_json
		FROM post_format_matches WHERE post_id = ?`, postID)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListMatches returns all matches ordered by post id.
func (s *Store) ListMatches(ctx context.Context) ([]*PostFormatMatch, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT post_id, format_name, example_id, confidence, status, reasons_json
		FROM post_format_matches ORDER BY post_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*PostFormatMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountMatchesByStatus returns match counts grouped by status.
func (s *Store) CountMatchesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM post_format_matches GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListMatchedPosts joins posts with their accepted matches (auto_matched or
// approved, non-null format). This is the scorer's entire input.
func (s *Store) ListMatchedPosts(ctx context.Context) ([]*MatchedPost, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT p.post_id, p.post_url, p.account_handle, p.posted_at, p.caption,
		        p.views, p.likes, p.comments, p.shares, p.collected_at, p.source, p.confidence,
		        m.format_name, m.status
		FROM crawl_posts p
		JOIN post_format_matches m ON m.post_id = p.post_id
		WHERE m.status IN (?, ?) AND m.format_name IS NOT NULL
		ORDER BY p.account_handle, p.post_id`,
		StatusAutoMatched, StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*MatchedPost
	for rows.Next() {
		mp := &MatchedPost{}
		var caption sql.NullString
		p := &mp.Post
		if err := rows.Scan(&p.PostID, &p.PostURL, &p.AccountHandle, &p.PostedAt, &caption,
			&p.Views, &p.Likes, &p.Comments, &p.Shares, &p.CollectedAt, &p.Source, &p.Confidence,
			&mp.FormatName, &mp.Status); err != nil {
			return nil, err
		}
		p.Caption = caption.String
		matched = append(matched, mp)
	}
	return matched, rows.Err()
}

func scanMatch(r rowScanner) (*PostFormatMatch, error) {
	m := &PostFormatMatch{}
	var reasons string
	err := r.Scan(&m.PostID, &m.FormatName, &m.ExampleID, &m.Confidence, &m.Status, &reasons)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reasons), &m.Reasons); err != nil {
		return nil, fmt.Errorf("unmarshal reasons for %s: %w", m.PostID, err)
	}
	return m, nil
}
