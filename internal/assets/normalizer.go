// Package assets normalizes the reference corpus of known formats.
//
// The corpus is a directory tree: <root>/formats/<format name>/ holding slide
// images named <example_id>.<slide_index>.<ext>. Each run rebuilds the three
// corpus tables from scratch: the directory is ground truth, the database is
// a projection of it.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/hazyhaar/slidemine/internal/store"
)

// ErrCorpusMissing is returned when the assets root has no formats directory.
var ErrCorpusMissing = errors.New("assets: corpus directory not found")

// slideFile matches <example_id>.<slide_index>.<ext> with an image extension.
var slideFile = regexp.MustCompile(`^(\d+)\.(\d+)\.(?i:png|jpe?g|webp|gif|bmp|heic)$`)

// IssueNonStandardFilename tags files that do not follow the naming convention.
const IssueNonStandardFilename = "non_standard_filename"

// IssueDuplicateSlideIndex tags a second file claiming an already-seen
// (example, slide) pair, e.g. 1.2.png next to 1.2.jpg.
const IssueDuplicateSlideIndex = "duplicate_slide_index"

// Normalizer rebuilds the format corpus tables from a directory tree.
type Normalizer struct {
	store  *store.Store
	ocr    OCREngine // nil disables OCR
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil ocr engine disables text
// extraction; matching then falls back to caption-only similarity.
func NewNormalizer(st *store.Store, ocr OCREngine, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{store: st, ocr: ocr, logger: logger}
}

// Summary reports one normalization run.
type Summary struct {
	Formats  int `json:"formats"`
	Examples int `json:"examples"`
	Slides   int `json:"slides"`
	Issues   int `json:"issues"`
	OCRRuns  int `json:"ocr_runs"`
	OCRFails int `json:"ocr_fails"`
}

// Run ingests the corpus under assetsRoot and fully replaces the corpus
// tables. Malformed filenames are recorded as issues, never raised.
func (n *Normalizer) Run(ctx context.Context, assetsRoot string) (*Summary, error) {
	formatsDir := filepath.Join(assetsRoot, "formats")
	entries, err := os.ReadDir(formatsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusMissing, formatsDir)
		}
		return nil, fmt.Errorf("read corpus root: %w", err)
	}

	var (
		examples []*store.FormatExample
		slides   []*store.FormatSlide
		issues   []*store.NormalizationIssue
		summary  Summary
	)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		formatName := entry.Name()
		formatDir := filepath.Join(formatsDir, formatName)

		exs, sls, iss, err := n.normalizeFormat(ctx, formatName, formatDir, &summary)
		if err != nil {
			return nil, err
		}
		examples = append(examples, exs...)
		slides = append(slides, sls...)
		issues = append(issues, iss...)
	}

	if err := n.store.ReplaceCorpus(ctx, examples, slides, issues); err != nil {
		return nil, fmt.Errorf("replace corpus: %w", err)
	}

	formats := make(map[string]bool, len(examples))
	for _, ex := range examples {
		formats[ex.FormatName] = true
	}
	summary.Formats = len(formats)
	summary.Examples = len(examples)
	summary.Slides = len(slides)
	summary.Issues = len(issues)

	n.logger.Info("assets: corpus normalized",
		"formats", summary.Formats, "examples", summary.Examples,
		"slides", summary.Slides, "issues", summary.Issues)
	return &summary, nil
}

// normalizeFormat groups one format directory's files into examples.
func (n *Normalizer) normalizeFormat(ctx context.Context, formatName, formatDir string, summary *Summary) ([]*store.FormatExample, []*store.FormatSlide, []*store.NormalizationIssue, error) {
	files, err := os.ReadDir(formatDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read format dir %s: %w", formatDir, err)
	}

	type slideRef struct {
		index int
		path  string
	}
	byExample := make(map[string][]slideRef)
	var issues []*store.NormalizationIssue

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		m := slideFile.FindStringSubmatch(name)
		if m == nil {
			issues = append(issues, &store.NormalizationIssue{
				FilePath: filepath.Join(formatDir, name),
				Issue:    IssueNonStandardFilename,
			})
			continue
		}
		exampleID := m[1]
		slideIndex, err := strconv.Atoi(m[2])
		if err != nil || slideIndex < 1 {
			issues = append(issues, &store.NormalizationIssue{
				FilePath: filepath.Join(formatDir, name),
				Issue:    IssueNonStandardFilename,
			})
			continue
		}
		byExample[exampleID] = append(byExample[exampleID], slideRef{
			index: slideIndex,
			path:  filepath.Join(formatDir, name),
		})
	}

	exampleIDs := make([]string, 0, len(byExample))
	for id := range byExample {
		exampleIDs = append(exampleIDs, id)
	}
	sort.Strings(exampleIDs)

	var examples []*store.FormatExample
	var slides []*store.FormatSlide
	for _, exampleID := range exampleIDs {
		refs := byExample[exampleID]
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].index != refs[j].index {
				return refs[i].index < refs[j].index
			}
			return refs[i].path < refs[j].path
		})

		// Drop later files claiming an index already taken.
		seen := make(map[int]bool, len(refs))
		kept := refs[:0]
		for _, ref := range refs {
			if seen[ref.index] {
				issues = append(issues, &store.NormalizationIssue{
					FilePath: ref.path,
					Issue:    IssueDuplicateSlideIndex,
				})
				continue
			}
			seen[ref.index] = true
			kept = append(kept, ref)
		}
		refs = kept

		examples = append(examples, &store.FormatExample{
			FormatName: formatName,
			ExampleID:  exampleID,
			SlideCount: len(refs),
		})

		for i, ref := range refs {
			sl := &store.FormatSlide{
				FormatName: formatName,
				ExampleID:  exampleID,
				SlideIndex: ref.index,
				FilePath:   ref.path,
				Role:       string(RoleForPosition(i+1, len(refs))),
			}
			if n.ocr != nil {
				summary.OCRRuns++
				text, err := n.ocr.ExtractText(ctx, ref.path)
				if err != nil {
					summary.OCRFails++
					n.logger.Warn("assets: ocr failed", "file", ref.path, "error", err)
				} else if text != "" {
					sl.OCRText = &text
				}
			}
			slides = append(slides, sl)
		}
	}

	return examples, slides, issues, nil
}
