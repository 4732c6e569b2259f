package store

import (
	"context"
	"fmt"
	"strings"
)

// ReplaceScores overwrites the whole format_scores table inside one
// transaction. The scorer has no memory beyond crawl_posts, so stale pairs
// from earlier runs must not survive.
func (s *Store) ReplaceScores(ctx context.Context, scores []*FormatScore) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM format_scores`); err != nil {
		return fmt.Errorf("clear format_scores: %w", err)
	}

	for _, sc := range scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO format_scores (format_name, account_handle, normalized_views,
			shares_per_1k, comments_per_1k, likes_per_1k, proxy_score, sample_size)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.FormatName, sc.AccountHandle, sc.NormalizedViews,
			sc.SharesPer1k, sc.CommentsPer1k, sc.LikesPer1k, sc.ProxyScore, sc.SampleSize); err != nil {
			return fmt.Errorf("insert score %s/%s: %w", sc.FormatName, sc.AccountHandle, err)
		}
	}

	return tx.Commit()
}

// ListScores returns scores, optionally restricted to a set of account
// handles. Empty scope means all accounts.
func (s *Store) ListScores(ctx context.Context, scope []string) ([]*FormatScore, error) {
	query := `SELECT format_name, account_handle, normalized_views, shares_per_1k,
	comments_per_1k, likes_per_1k, proxy_score, sample_size FROM format_scores`
	var args []any
	if len(scope) > 0 {
		query += ` WHERE account_handle IN (?` + strings.Repeat(", ?", len(scope)-1) + `)`
		for _, h := range scope {
			args = append(args, h)
		}
	}
	query += ` ORDER BY proxy_score DESC, format_name`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*FormatScore
	for rows.Next() {
		sc := &FormatScore{}
		if err := rows.Scan(&sc.FormatName, &sc.AccountHandle, &sc.NormalizedViews,
			&sc.SharesPer1k, &sc.CommentsPer1k, &sc.LikesPer1k, &sc.ProxyScore, &sc.SampleSize); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// CountScores returns the number of (format, account) score rows.
func (s *Store) CountScores(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM format_scores`).Scan(&n)
	return n, err
}
