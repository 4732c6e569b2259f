package store

// CrawlPost is one harvested post with its engagement counters.
// Confidence is the crawler's own estimate of metric reliability, not the
// matcher's; the two are unrelated.
type CrawlPost struct {
	PostID        string  `json:"post_id"`
	PostURL       string  `json:"post_url"`
	AccountHandle string  `json:"account_handle"`
	PostedAt      *int64  `json:"posted_at,omitempty"`
	Caption       string  `json:"caption"`
	Views         int64   `json:"views"`
	Likes         int64   `json:"likes"`
	Comments      int64   `json:"comments"`
	Shares        int64   `json:"shares"`
	CollectedAt   int64   `json:"collected_at"`
	Source        string  `json:"source"`
	Confidence    float64 `json:"confidence"`
}

// CrawlFailure is one diagnostic failure record. Never read downstream.
type CrawlFailure struct {
	AccountHandle string `json:"account_handle"`
	PostURL       string `json:"post_url"`
	Reason        string `json:"reason"`
	CollectedAt   int64  `json:"collected_at"`
}

// FormatExample is one reference instance of a named format.
type FormatExample struct {
	FormatName string `json:"format_name"`
	ExampleID  string `json:"example_id"`
	SlideCount int    `json:"slide_count"`
}

// FormatSlide is one ordered slide within a FormatExample. SlideIndex is
// 1-based. OCRText is nil when extraction was disabled or failed.
type FormatSlide struct {
	FormatName string  `json:"format_name"`
	ExampleID  string  `json:"example_id"`
	SlideIndex int     `json:"slide_index"`
	FilePath   string  `json:"file_path"`
	OCRText    *string `json:"ocr_text,omitempty"`
	Role       string  `json:"role"`
}

// NormalizationIssue records a corpus file that could not be parsed into the
// <example>.<slide>.<ext> convention. Advisory only.
type NormalizationIssue struct {
	FilePath  string `json:"file_path"`
	Issue     string `json:"issue"`
	CreatedAt int64  `json:"created_at"`
}

// PostFormatMatch is the matcher's best guess for one post. FormatName and
// ExampleID are nil below the confidence threshold.
type PostFormatMatch struct {
	PostID     string   `json:"post_id"`
	FormatName *string  `json:"format_name,omitempty"`
	ExampleID  *string  `json:"example_id,omitempty"`
	Confidence float64  `json:"confidence"`
	Status     string   `json:"status"`
	Reasons    []string `json:"reasons"`
}

// FormatScore is the aggregated proxy virality for one (format, account) pair.
type FormatScore struct {
	FormatName      string  `json:"format_name"`
	AccountHandle   string  `json:"account_handle"`
	NormalizedViews float64 `json:"normalized_views"`
	SharesPer1k     float64 `json:"shares_per_1k"`
	CommentsPer1k   float64 `json:"comments_per_1k"`
	LikesPer1k      float64 `json:"likes_per_1k"`
	ProxyScore      float64 `json:"proxy_score"`
	SampleSize      int     `json:"sample_size"`
}

// Draft is one generated, review-only candidate post.
type Draft struct {
	DraftID        string   `json:"draft_id"`
	Topic          string   `json:"topic"`
	Objective      string   `json:"objective"`
	FormatName     string   `json:"format_name"`
	PredictedScore float64  `json:"predicted_score"`
	Rationale      []string `json:"rationale"`
	Caption        string   `json:"caption"`
	Status         string   `json:"status"`
	CreatedAt      int64    `json:"created_at"`
}

// DraftSlide is one generated slide. SlideIndex is 1-based.
type DraftSlide struct {
	DraftID    string `json:"draft_id"`
	SlideIndex int    `json:"slide_index"`
	Role       string `json:"role"`
	Text       string `json:"text"`
}

// Export records one manifest write. Append-only.
type Export struct {
	DraftID      string `json:"draft_id"`
	OutputDir    string `json:"output_dir"`
	ManifestPath string `json:"manifest_path"`
	CreatedAt    int64  `json:"created_at"`
}

// MatchedPost joins a post with its accepted match; scorer input.
type MatchedPost struct {
	Post       CrawlPost
	FormatName string
	Status     string
}
