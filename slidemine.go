// Package slidemine mines viral slideshow formats: it crawls account
// timelines, normalizes a reference corpus of known formats, matches posts to
// formats, scores formats by proxy virality, and generates review-only drafts
// with export manifests.
//
// Service is the single orchestrator; the CLI, HTTP surface, and MCP tools
// all call through it.
package slidemine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hazyhaar/slidemine/dbopen"
	"github.com/hazyhaar/slidemine/idgen"
	"github.com/hazyhaar/slidemine/internal/assets"
	"github.com/hazyhaar/slidemine/internal/browser"
	"github.com/hazyhaar/slidemine/internal/crawler"
	"github.com/hazyhaar/slidemine/internal/draft"
	"github.com/hazyhaar/slidemine/internal/export"
	"github.com/hazyhaar/slidemine/internal/matcher"
	"github.com/hazyhaar/slidemine/internal/report"
	"github.com/hazyhaar/slidemine/internal/scorer"
	"github.com/hazyhaar/slidemine/internal/store"
)

// Service is the main slidemine orchestrator.
type Service struct {
	config *Config
	logger *slog.Logger
	newID  idgen.Generator
	rng    *rand.Rand

	db     *sql.DB
	store  *store.Store
	source crawler.PostSource // nil = launch a browser source per backfill
	ocr    assets.OCREngine   // nil = default tesseract engine when OCR is on
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithPostSource overrides the browser-backed post source. Used by tests and
// by alternative transports.
func WithPostSource(src crawler.PostSource) ServiceOption {
	return func(svc *Service) { svc.source = src }
}

// WithOCREngine overrides the tesseract OCR engine.
func WithOCREngine(e assets.OCREngine) ServiceOption {
	return func(svc *Service) { svc.ocr = e }
}

// WithSeed fixes the draft generator's random source for reproducible runs.
func WithSeed(seed int64) ServiceOption {
	return func(svc *Service) { svc.rng = rand.New(rand.NewSource(seed)) }
}

// WithIDGenerator overrides draft id generation.
func WithIDGenerator(g idgen.Generator) ServiceOption {
	return func(svc *Service) { svc.newID = g }
}

// New creates a Service. Call Open before using pipeline methods.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		config: cfg,
		logger: logger,
		newID:  idgen.Prefixed("drf_", idgen.UUIDv7()),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Open opens the SQLite database. Idempotent.
func (svc *Service) Open(ctx context.Context) error {
	if svc.db != nil {
		return nil
	}
	db, err := dbopen.Open(svc.config.DBPath)
	if err != nil {
		return fmt.Errorf("slidemine: open db: %w", err)
	}
	svc.db = db
	svc.store = store.NewStore(db)
	return nil
}

// Close releases the database.
func (svc *Service) Close() error {
	if svc.db == nil {
		return nil
	}
	err := svc.db.Close()
	svc.db = nil
	svc.store = nil
	return err
}

// Store exposes the storage layer for read surfaces (HTTP, MCP).
func (svc *Service) Store() *store.Store {
	return svc.store
}

// Config returns the active configuration.
func (svc *Service) Config() *Config {
	return svc.config
}

func (svc *Service) ready() error {
	if svc.store == nil {
		return ErrNotOpen
	}
	return nil
}

// InitDB creates or migrates the schema.
func (svc *Service) InitDB(ctx context.Context) error {
	if err := svc.ready(); err != nil {
		return err
	}
	if err := store.ApplySchema(svc.db); err != nil {
		return fmt.Errorf("slidemine: apply schema: %w", err)
	}
	svc.logger.Info("slidemine: schema applied", "db", svc.config.DBPath)
	return nil
}

// Backfill crawls every account identifier, saving posts and failures. When
// no post source was injected, a stealth Chrome session is launched for the
// duration of the batch.
func (svc *Service) Backfill(ctx context.Context, idents []string, maxPosts int) (*crawler.Summary, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	if len(idents) == 0 {
		return nil, fmt.Errorf("%w: no accounts to crawl", ErrInvalidInput)
	}
	if maxPosts <= 0 {
		maxPosts = svc.config.Crawl.MaxPostsPerAccount
	}

	source := svc.source
	if source == nil {
		src := browser.NewSource(browser.Config{
			RemoteURL:      svc.config.Crawl.RemoteBrowserURL,
			Platform:       svc.config.Crawl.Platform,
			NavTimeout:     svc.config.Crawl.NavTimeout(),
			ScrollAttempts: svc.config.Crawl.ScrollAttempts,
			Logger:         svc.logger,
		})
		if err := src.Start(ctx); err != nil {
			return nil, err
		}
		defer src.Close()
		source = src
	}

	return crawler.New(svc.store, source, svc.logger).Run(ctx, idents, maxPosts)
}

// IngestAssets rebuilds the format corpus from the directory tree at root.
// Empty root falls back to the configured assets root.
func (svc *Service) IngestAssets(ctx context.Context, root string, withOCR bool) (*assets.Summary, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	if root == "" {
		root = svc.config.AssetsRoot
	}

	var ocr assets.OCREngine
	if withOCR {
		ocr = svc.ocr
		if ocr == nil {
			ocr = &assets.TesseractEngine{Timeout: svc.config.Crawl.OCRTimeout()}
		}
	}
	return assets.NewNormalizer(svc.store, ocr, svc.logger).Run(ctx, root)
}

// MatchPosts matches every crawled post against the corpus. A non-positive
// threshold falls back to the configured one.
func (svc *Service) MatchPosts(ctx context.Context, threshold float64) (*matcher.Summary, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	if threshold < 0 {
		threshold = svc.config.Match.Threshold
	}
	return matcher.New(svc.store, svc.logger).Run(ctx, threshold)
}

// ScoreFormats recomputes proxy virality for every (format, account) pair.
func (svc *Service) ScoreFormats(ctx context.Context) (*scorer.Summary, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	return scorer.New(svc.store, svc.config.Score, svc.logger).Run(ctx)
}

// MakeDrafts generates count drafts for the topic.
func (svc *Service) MakeDrafts(ctx context.Context, params draft.Params) (*draft.Summary, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	if params.Topic == "" {
		return nil, fmt.Errorf("%w: topic required", ErrInvalidInput)
	}
	if params.ExploreRatio < 0 {
		params.ExploreRatio = svc.config.Draft.ExploreRatio
	}
	return draft.New(svc.store, svc.newID, svc.rng, svc.logger).Run(ctx, params)
}

// ExportDraft writes the manifest and uploader CSV for one draft. Empty
// outputRoot falls back to the configured one.
func (svc *Service) ExportDraft(ctx context.Context, draftID, outputRoot, accountID string) (*export.Result, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	if outputRoot == "" {
		outputRoot = svc.config.OutputRoot
	}
	return export.New(svc.store, svc.logger).Run(ctx, outputRoot, draftID, accountID, svc.config.Crawl.Platform)
}

// Report aggregates pipeline state across every table.
func (svc *Service) Report(ctx context.Context) (*report.Report, error) {
	if err := svc.ready(); err != nil {
		return nil, err
	}
	return report.Build(ctx, svc.store)
}
