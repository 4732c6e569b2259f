package store

import (
	"context"
	"fmt"
	"time"
)

// ReplaceCorpus rebuilds the three corpus tables from scratch inside one
// transaction. The corpus directory is the single source of truth, so this is
// a delete-then-bulk-insert, never an incremental diff.
func (s *Store) ReplaceCorpus(ctx context.Context, examples []*FormatExample, slides []*FormatSlide, issues []*NormalizationIssue) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"format_slides", "format_examples", "normalization_issues"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, ex := range examples {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO format_examples (format_name, example_id, slide_count) VALUES (?, ?, ?)`,
			ex.FormatName, ex.ExampleID, ex.SlideCount); err != nil {
			return fmt.Errorf("insert example %s/%s: %w", ex.FormatName, ex.ExampleID, err)
		}
	}

	for _, sl := range slides {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO format_slides (format_name, example_id, slide_index, file_path, ocr_text, role)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sl.FormatName, sl.ExampleID, sl.SlideIndex, sl.FilePath, sl.OCRText, sl.Role); err != nil {
			return fmt.Errorf("insert slide %s/%s/%d: %w", sl.FormatName, sl.ExampleID, sl.SlideIndex, err)
		}
	}

	now := time.Now().UnixMilli()
	for _, is := range issues {
		if is.CreatedAt == 0 {
			is.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO normalization_issues (file_path, issue, created_at) VALUES (?, ?, ?)`,
			is.FilePath, is.Issue, is.CreatedAt); err != nil {
			return fmt.Errorf("insert issue %s: %w", is.FilePath, err)
		}
	}

	return tx.Commit()
}

// ListFormatExamples returns the corpus examples ordered by format then example.
func (s *Store) ListFormatExamples(ctx context.Context) ([]*FormatExample, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT format_name, example_id, slide_count
		FROM format_examples ORDER BY format_name, example_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var examples []*FormatExample
	for rows.Next() {
		ex := &FormatExample{}
		if err := rows.Scan(&ex.FormatName, &ex.ExampleID, &ex.SlideCount); err != nil {
			return nil, err
		}
		examples = append(examples, ex)
	}
	return examples, rows.Err()
}

// ListFormatSlides returns every corpus slide in (format, example, index) order.
func (s *Store) ListFormatSlides(ctx context.Context) ([]*FormatSlide, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT format_name, example_id, slide_index, file_path, ocr_text, role
		FROM format_slides ORDER BY format_name, example_id, slide_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slides []*FormatSlide
	for rows.Next() {
		sl := &FormatSlide{}
		if err := rows.Scan(&sl.FormatName, &sl.ExampleID, &sl.SlideIndex, &sl.FilePath, &sl.OCRText, &sl.Role); err != nil {
			return nil, err
		}
		slides = append(slides, sl)
	}
	return slides, rows.Err()
}

// SlidesForFormat returns the ordered slides of one format's first example,
// the canonical role sequence used when generating drafts.
func (s *Store) SlidesForFormat(ctx context.Context, formatName string) ([]*FormatSlide, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT format_name, example_id, slide_index, file_path, ocr_text, role
		FROM format_slides
		WHERE format_name = ? AND example_id = (
		    SELECT MIN(example_id) FROM format_slides WHERE format_name = ?
		)
		ORDER BY slide_index`, formatName, formatName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slides []*FormatSlide
	for rows.Next() {
		sl := &FormatSlide{}
		if err := rows.Scan(&sl.FormatName, &sl.ExampleID, &sl.SlideIndex, &sl.FilePath, &sl.OCRText, &sl.Role); err != nil {
			return nil, err
		}
		slides = append(slides, sl)
	}
	return slides, rows.Err()
}

// ListNormalizationIssues returns issues from the latest normalization run.
func (s *Store) ListNormalizationIssues(ctx context.Context) ([]*NormalizationIssue, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT file_path, issue, created_at FROM normalization_issues ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []*NormalizationIssue
	for rows.Next() {
		is := &NormalizationIssue{}
		if err := rows.Scan(&is.FilePath, &is.Issue, &is.CreatedAt); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// CountFormats returns the number of distinct formats in the corpus.
func (s *Store) CountFormats(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT format_name) FROM format_examples`).Scan(&n)
	return n, err
}
