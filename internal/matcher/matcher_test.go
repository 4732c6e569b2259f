package matcher

import (
	"context"
	"math"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/slidemine/dbopen"
	"github.com/hazyhaar/slidemine/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return store.NewStore(db)
}

func strPtr(s string) *string { return &s }

func seedFormat(t *testing.T, st *store.Store, name string, slideTexts ...string) {
	t.Helper()
	examples := []*store.FormatExample{{FormatName: name, ExampleID: "1", SlideCount: len(slideTexts)}}
	var slides []*store.FormatSlide
	for i, text := range slideTexts {
		sl := &store.FormatSlide{
			FormatName: name, ExampleID: "1", SlideIndex: i + 1,
			FilePath: "x", Role: "proof",
		}
		if text != "" {
			sl.OCRText = strPtr(text)
		}
		slides = append(slides, sl)
	}
	// Merge with whatever is already there by reading and re-replacing.
	oldExamples, err := st.ListFormatExamples(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	oldSlides, err := st.ListFormatSlides(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceCorpus(context.Background(),
		append(oldExamples, examples...), append(oldSlides, slides...), nil); err != nil {
		t.Fatal(err)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Stop SCROLLING! 5 tips, #fyp 🚀 tips")
	want := map[string]struct{}{
		"stop": {}, "scrolling": {}, "5": {}, "tips": {}, "fyp": {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestJaccard_Properties(t *testing.T) {
	// WHAT: Symmetry, [0,1] bounds, and the empty-set rule.
	// WHY: These are the documented guarantees downstream code relies on.
	a := Tokenize("the quick brown fox")
	b := Tokenize("the slow brown bear")
	empty := Tokenize("")

	if Jaccard(a, empty) != 0 || Jaccard(empty, a) != 0 {
		t.Error("jaccard with empty set must be 0")
	}
	ab, ba := Jaccard(a, b), Jaccard(b, a)
	if ab != ba {
		t.Errorf("asymmetric: %v vs %v", ab, ba)
	}
	if ab < 0 || ab > 1 {
		t.Errorf("out of bounds: %v", ab)
	}
	if Jaccard(a, a) != 1 {
		t.Errorf("self similarity = %v, want 1", Jaccard(a, a))
	}
	// the, brown shared; quick, fox, slow, bear not → 2/6
	if math.Abs(ab-2.0/6.0) > 1e-9 {
		t.Errorf("jaccard = %v, want %v", ab, 2.0/6.0)
	}
}

func TestStructuralPrior(t *testing.T) {
	if structuralPrior(5, 5) != 1 {
		t.Error("exact target should score 1")
	}
	if structuralPrior(8, 5) >= structuralPrior(6, 5) {
		t.Error("prior should decay with distance")
	}
	want := math.Exp(-4.0 / 9.0)
	if math.Abs(structuralPrior(7, 5)-want) > 1e-12 {
		t.Errorf("prior(7,5) = %v, want %v", structuralPrior(7, 5), want)
	}
}

func TestEngagementDensity_ZeroViews(t *testing.T) {
	if engagementDensity(&store.CrawlPost{Views: 0, Likes: 100}) != 0 {
		t.Error("density with zero views must be 0")
	}
	p := &store.CrawlPost{Views: 1000, Likes: 50, Comments: 10, Shares: 20}
	if got := engagementDensity(p); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("density = %v, want 0.1", got)
	}
}

func TestRun_ThresholdSplitsStatuses(t *testing.T) {
	// WHAT: Below-threshold posts get needs_review with null format; the rest
	// auto-match with the winning format's first example.
	// WHY: The threshold is the whole review-tier contract.
	st := openTestStore(t)
	ctx := context.Background()
	seedFormat(t, st, "morning routine", "wake up at five", "cold shower routine", "journal and plan")

	posts := []*store.CrawlPost{
		{PostID: "hit", PostURL: "u1", AccountHandle: "a",
			Caption: "my five step morning routine wake up cold shower journal plan", Views: 1000, Likes: 100},
		{PostID: "miss", PostURL: "u2", AccountHandle: "a",
			Caption: "completely unrelated gaming clip", Views: 1000, Likes: 100},
	}
	for _, p := range posts {
		if err := st.UpsertCrawlPost(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	m := New(st, nil)
	summary, err := m.Run(ctx, 0.4)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Posts != 2 || summary.AutoMatched != 1 || summary.NeedsReview != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	hit, err := st.GetMatch(ctx, "hit")
	if err != nil {
		t.Fatal(err)
	}
	if hit.Status != store.StatusAutoMatched {
		t.Fatalf("hit status = %q (confidence %v)", hit.Status, hit.Confidence)
	}
	if hit.FormatName == nil || *hit.FormatName != "morning routine" {
		t.Fatalf("hit format = %v", hit.FormatName)
	}
	if hit.ExampleID == nil || *hit.ExampleID != "1" {
		t.Fatalf("hit example = %v", hit.ExampleID)
	}
	if len(hit.Reasons) != 2 {
		t.Fatalf("reasons = %v", hit.Reasons)
	}

	miss, err := st.GetMatch(ctx, "miss")
	if err != nil {
		t.Fatal(err)
	}
	if miss.Status != store.StatusNeedsReview {
		t.Fatalf("miss status = %q", miss.Status)
	}
	if miss.FormatName != nil || miss.ExampleID != nil {
		t.Fatal("miss must have null format/example")
	}
	if miss.Confidence < 0 || miss.Confidence > 1 {
		t.Fatalf("confidence out of bounds: %v", miss.Confidence)
	}
}

func TestRun_Idempotent(t *testing.T) {
	// WHAT: Two runs on unchanged inputs yield identical matches.
	// WHY: Idempotence is the matcher's consistency mechanism in lieu of locks.
	st := openTestStore(t)
	ctx := context.Background()
	seedFormat(t, st, "listicle", "five tools you need")
	if err := st.UpsertCrawlPost(ctx, &store.CrawlPost{
		PostID: "p", PostURL: "u", AccountHandle: "a",
		Caption: "five tools you need today", Views: 10,
	}); err != nil {
		t.Fatal(err)
	}

	m := New(st, nil)
	if _, err := m.Run(ctx, 0.3); err != nil {
		t.Fatal(err)
	}
	first, err := st.GetMatch(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Run(ctx, 0.3); err != nil {
		t.Fatal(err)
	}
	second, err := st.GetMatch(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	// WHAT: With no formats every post is needs_review, nothing errors.
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.UpsertCrawlPost(ctx, &store.CrawlPost{
		PostID: "p", PostURL: "u", AccountHandle: "a", Caption: "anything",
	}); err != nil {
		t.Fatal(err)
	}

	summary, err := New(st, nil).Run(ctx, 0.4)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.NeedsReview != 1 || summary.AutoMatched != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRun_ZeroThresholdMatchesEverything(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedFormat(t, st, "alpha", "anything at all")
	if err := st.UpsertCrawlPost(ctx, &store.CrawlPost{
		PostID: "p", PostURL: "u", AccountHandle: "a", Caption: "no overlap here",
	}); err != nil {
		t.Fatal(err)
	}

	summary, err := New(st, nil).Run(ctx, 0.0)
	if err != nil {
		t.Fatal(err)
	}
	if summary.AutoMatched != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}
