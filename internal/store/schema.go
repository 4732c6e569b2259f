package store

import "database/sql"

// Match statuses. A match below the confidence threshold is parked for a
// human; "approved" is only ever set by an external reviewer.
const (
	StatusAutoMatched = "auto_matched"
	StatusNeedsReview = "needs_review"
	StatusApproved    = "approved"
)

// DraftStatusReview is the initial status of every generated draft.
// Terminal statuses are set outside the pipeline.
const DraftStatusReview = "review"

// Schema is the complete slidemine schema.
const Schema = `
-- Crawled posts (sole writer: crawler; upsert on post_id)
CREATE TABLE IF NOT EXISTS crawl_posts (
    post_id        TEXT PRIMARY KEY,
    post_url       TEXT NOT NULL,
    account_handle TEXT NOT NULL,
    posted_at      INTEGER,
    caption        TEXT,
    views          INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0),
    likes          INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
    comments       INTEGER NOT NULL DEFAULT 0 CHECK (comments >= 0),
    shares         INTEGER NOT NULL DEFAULT 0 CHECK (shares >= 0),
    collected_at   INTEGER NOT NULL,
    source         TEXT NOT NULL DEFAULT '',
    confidence     REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_crawl_posts_account ON crawl_posts(account_handle);

-- Crawl failures (append-only, diagnostic)
CREATE TABLE IF NOT EXISTS crawl_failures (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    account_handle TEXT NOT NULL,
    post_url       TEXT NOT NULL DEFAULT '',
    reason         TEXT NOT NULL,
    collected_at   INTEGER NOT NULL
);

-- Reference corpus (sole writer: normalizer; fully replaced each run)
CREATE TABLE IF NOT EXISTS format_examples (
    format_name  TEXT NOT NULL,
    example_id   TEXT NOT NULL,
    slide_count  INTEGER NOT NULL,
    PRIMARY KEY (format_name, example_id)
);

CREATE TABLE IF NOT EXISTS format_slides (
    format_name  TEXT NOT NULL,
    example_id   TEXT NOT NULL,
    slide_index  INTEGER NOT NULL,
    file_path    TEXT NOT NULL,
    ocr_text     TEXT,
    role         TEXT NOT NULL,
    PRIMARY KEY (format_name, example_id, slide_index)
);
CREATE INDEX IF NOT EXISTS idx_format_slides_format ON format_slides(format_name);

CREATE TABLE IF NOT EXISTS normalization_issues (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path   TEXT NOT NULL,
    issue       TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);

-- Best-guess format per post (sole writer: matcher; upsert on post_id)
CREATE TABLE IF NOT EXISTS post_format_matches (
    post_id      TEXT PRIMARY KEY REFERENCES crawl_posts(post_id) ON DELETE CASCADE,
    format_name  TEXT,
    example_id   TEXT,
    confidence   REAL NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'needs_review',
    reasons_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_matches_status ON post_format_matches(status);

-- Proxy virality per (format, account) (sole writer: scorer; upsert)
CREATE TABLE IF NOT EXISTS format_scores (
    format_name      TEXT NOT NULL,
    account_handle   TEXT NOT NULL,
    normalized_views REAL NOT NULL DEFAULT 0,
    shares_per_1k    REAL NOT NULL DEFAULT 0,
    comments_per_1k  REAL NOT NULL DEFAULT 0,
    likes_per_1k     REAL NOT NULL DEFAULT 0,
    proxy_score      REAL NOT NULL DEFAULT 0,
    sample_size      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (format_name, account_handle)
);

-- Generated drafts (sole writer: draft generator; immutable except status)
CREATE TABLE IF NOT EXISTS drafts (
    draft_id        TEXT PRIMARY KEY,
    topic           TEXT NOT NULL,
    objective       TEXT NOT NULL DEFAULT '',
    format_name     TEXT NOT NULL,
    predicted_score REAL NOT NULL DEFAULT 0,
    rationale_json  TEXT NOT NULL DEFAULT '[]',
    caption         TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'review',
    created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS draft_slides (
    draft_id    TEXT NOT NULL REFERENCES drafts(draft_id) ON DELETE CASCADE,
    slide_index INTEGER NOT NULL,
    role        TEXT NOT NULL,
    text        TEXT NOT NULL,
    PRIMARY KEY (draft_id, slide_index)
);

-- Export audit trail (append-only; a draft may be exported more than once)
CREATE TABLE IF NOT EXISTS exports (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    draft_id      TEXT NOT NULL REFERENCES drafts(draft_id) ON DELETE CASCADE,
    output_dir    TEXT NOT NULL,
    manifest_path TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exports_draft ON exports(draft_id);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
