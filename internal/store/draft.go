package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertDraft persists a draft and its ordered slides in one transaction.
func (s *Store) InsertDraft(ctx context.Context, d *Draft, slides []*DraftSlide) error {
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().UnixMilli()
	}
	if d.Status == "" {
		d.Status = DraftStatusReview
	}
	rationale, err := json.Marshal(d.Rationale)
	if err != nil {
		return fmt.Errorf("marshal rationale: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO drafts (draft_id, topic, objective, format_name, predicted_score,
		rationale_json, caption, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DraftID, d.Topic, d.Objective, d.FormatName, d.PredictedScore,
		string(rationale), d.Caption, d.Status, d.CreatedAt); err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}

	for _, sl := range slides {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO draft_slides (draft_id, slide_index, role, text) VALUES (?, ?, ?, ?)`,
			sl.DraftID, sl.SlideIndex, sl.Role, sl.Text); err != nil {
			return fmt.Errorf("insert slide %d: %w", sl.SlideIndex, err)
		}
	}

	return tx.Commit()
}

// DraftWithSlides pairs a draft with its ordered slides for batch insertion.
type DraftWithSlides struct {
	Draft  *Draft
	Slides []*DraftSlide
}

// InsertDrafts persists a whole generation run in a single transaction, so a
// crash mid-run leaves either all requested drafts or none.
func (s *Store) InsertDrafts(ctx context.Context, batch []*DraftWithSlides) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, item := range batch {
		d := item.Draft
		if d.CreatedAt == 0 {
			d.CreatedAt = time.Now().UnixMilli()
		}
		if d.Status == "" {
			d.Status = DraftStatusReview
		}
		rationale, err := json.Marshal(d.Rationale)
		if err != nil {
			return fmt.Errorf("marshal rationale: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO drafts (draft_id, topic, objective, format_name, predicted_score,
			rationale_json, caption, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.DraftID, d.Topic, d.Objective, d.FormatName, d.PredictedScore,
			string(rationale), d.Caption, d.Status, d.CreatedAt); err != nil {
			return fmt.Errorf("insert draft %s: %w", d.DraftID, err)
		}
		for _, sl := range item.Slides {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO draft_slides (draft_id, slide_index, role, text) VALUES (?, ?, ?, ?)`,
				sl.DraftID, sl.SlideIndex, sl.Role, sl.Text); err != nil {
				return fmt.Errorf("insert slide %s/%d: %w", sl.DraftID, sl.SlideIndex, err)
			}
		}
	}

	return tx.Commit()
}

// GetDraft retrieves a draft by ID. Returns nil when absent.
func (s *Store) GetDraft(ctx context.Context, draftID string) (*Draft, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT draft_id, topic, objective, format_name, predicted_score,
		rationale_json, caption, status, created_at
		FROM drafts WHERE draft_id = ?`, draftID)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ListDrafts returns drafts, most recent first.
func (s *Store) ListDrafts(ctx context.Context, limit int) ([]*Draft, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT draft_id, topic, objective, format_name, predicted_score,
		rationale_json, caption, status, created_at
		FROM drafts ORDER BY created_at DESC, draft_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// ListDraftSlides returns a draft's slides in order.
func (s *Store) ListDraftSlides(ctx context.Context, draftID string) ([]*DraftSlide, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT draft_id, slide_index, role, text
		FROM draft_slides WHERE draft_id = ? ORDER BY slide_index`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slides []*DraftSlide
	for rows.Next() {
		sl := &DraftSlide{}
		if err := rows.Scan(&sl.DraftID, &sl.SlideIndex, &sl.Role, &sl.Text); err != nil {
			return nil, err
		}
		slides = append(slides, sl)
	}
	return slides, rows.Err()
}

// CountDrafts returns the total number of drafts.
func (s *Store) CountDrafts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&n)
	return n, err
}

// InsertExport appends one export audit row. Exports are a history, not a
// single current pointer, so this never upserts.
func (s *Store) InsertExport(ctx context.Context, e *Export) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO exports (draft_id, output_dir, manifest_path, created_at)
		VALUES (?, ?, ?, ?)`,
		e.DraftID, e.OutputDir, e.ManifestPath, e.CreatedAt,
	)
	return err
}

// ListExports returns export records for one draft, oldest first.
func (s *Store) ListExports(ctx context.Context, draftID string) ([]*Export, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT draft_id, output_dir, manifest_path, created_at
		FROM exports WHERE draft_id = ? ORDER BY id`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e := &Export{}
		if err := rows.Scan(&e.DraftID, &e.OutputDir, &e.ManifestPath, &e.CreatedAt); err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

// CountExports returns the total number of export audit rows.
func (s *Store) CountExports(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports`).Scan(&n)
	return n, err
}

func scanDraft(r rowScanner) (*Draft, error) {
	d := &Draft{}
	var rationale string
	err := r.Scan(&d.DraftID, &d.Topic, &d.Objective, &d.FormatName, &d.PredictedScore,
		&rationale, &d.Caption, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rationale), &d.Rationale); err != nil {
		return nil, fmt.Errorf("unmarshal rationale for %s: %w", d.DraftID, err)
	}
	return d, nil
}
