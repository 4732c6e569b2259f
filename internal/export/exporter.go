// Package export writes publishing manifests for approved-for-export drafts.
//
// Each export lands in its own directory named after the draft ID, holding a
// machine-readable manifest.json and an upload.csv row shaped for the
// downstream posting tool. Exporting never mutates the draft; re-exporting
// the same draft overwrites the files and appends a fresh audit row.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/slidemine/internal/store"
	"github.com/hazyhaar/slidemine/webguard"
)

// ErrDraftNotFound is returned when the requested draft does not exist.
var ErrDraftNotFound = errors.New("export: draft not found")

// Exporter writes draft manifests under a fixed output root.
type Exporter struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates an Exporter.
func New(st *store.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: st, logger: logger}
}

// Manifest is the machine-readable export document.
type Manifest struct {
	DraftID        string          `json:"draft_id"`
	Topic          string          `json:"topic"`
	Objective      string          `json:"objective"`
	FormatName     string          `json:"format_name"`
	PredictedScore float64         `json:"predicted_score"`
	Rationale      []string        `json:"rationale"`
	Caption        string          `json:"caption"`
	Status         string          `json:"status"`
	Slides         []ManifestSlide `json:"slides"`
}

// ManifestSlide is one slide entry within a Manifest.
type ManifestSlide struct {
	Index int    `json:"index"`
	Role  string `json:"role"`
	Text  string `json:"text"`
}

// Result reports one export.
type Result struct {
	DraftID      string `json:"draft_id"`
	OutputDir    string `json:"output_dir"`
	ManifestPath string `json:"manifest_path"`
	CSVPath      string `json:"csv_path"`
}

// uploadHeader matches the posting tool's expected column order.
var uploadHeader = []string{
	"file_type", "account_id", "mode", "caption", "video_path",
	"image_paths", "platform", "client_ref",
}

// Run exports one draft: writes manifest.json and upload.csv under
// outputRoot/<draft_id>/ and appends an audit row.
func (e *Exporter) Run(ctx context.Context, outputRoot, draftID, accountID, platform string) (*Result, error) {
	if err := webguard.ValidateIdentifier(draftID); err != nil {
		return nil, err
	}
	if platform == "" {
		platform = "tiktok"
	}

	d, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if d == nil {
		return nil, ErrDraftNotFound
	}
	slides, err := e.store.ListDraftSlides(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}

	outDir, err := webguard.SafePath(outputRoot, draftID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	manifest := &Manifest{
		DraftID:        d.DraftID,
		Topic:          d.Topic,
		Objective:      d.Objective,
		FormatName:     d.FormatName,
		PredictedScore: d.PredictedScore,
		Rationale:      d.Rationale,
		Caption:        d.Caption,
		Status:         d.Status,
	}
	for _, sl := range slides {
		manifest.Slides = append(manifest.Slides, ManifestSlide{
			Index: sl.SlideIndex, Role: sl.Role, Text: sl.Text,
		})
	}

	manifestPath := filepath.Join(outDir, "manifest.json")
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, err
	}

	csvPath := filepath.Join(outDir, "upload.csv")
	if err := writeUploadCSV(csvPath, d, slides, accountID, platform); err != nil {
		return nil, err
	}

	if err := e.store.InsertExport(ctx, &store.Export{
		DraftID: draftID, OutputDir: outDir, ManifestPath: manifestPath,
	}); err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}

	e.logger.Info("export: draft written",
		"draft_id", draftID, "dir", outDir, "slides", len(slides))
	return &Result{
		DraftID: draftID, OutputDir: outDir,
		ManifestPath: manifestPath, CSVPath: csvPath,
	}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeUploadCSV emits the single slideshow row. image_paths stays empty
// until a human attaches final imagery; the slide texts live in the manifest.
func writeUploadCSV(path string, d *store.Draft, slides []*store.DraftSlide, accountID, platform string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(uploadHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := []string{
		"slideshow",
		accountID,
		"draft",
		d.Caption,
		"",
		"",
		platform,
		d.DraftID,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}
