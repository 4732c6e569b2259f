package draft

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
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

// seedScoredFormats writes n formats named f0..f(n-1) with strictly
// descending proxy scores, each backed by a single-slide example so role
// sequences resolve.
func seedScoredFormats(t *testing.T, st *store.Store, n int) {
	t.Helper()
	ctx := context.Background()

	var examples []*store.FormatExample
	var slides []*store.FormatSlide
	var scores []*store.FormatScore
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f%d", i)
		examples = append(examples, &store.FormatExample{
			FormatName: name, ExampleID: "1", SlideCount: 1,
		})
		slides = append(slides, &store.FormatSlide{
			FormatName: name, ExampleID: "1", SlideIndex: 1,
			FilePath: "x", Role: "proof",
		})
		scores = append(scores, &store.FormatScore{
			FormatName: name, AccountHandle: "acct",
			ProxyScore: 0.9 - 0.1*float64(i), SampleSize: 5,
		})
	}
	if err := st.ReplaceCorpus(ctx, examples, slides, nil); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceScores(ctx, scores); err != nil {
		t.Fatal(err)
	}
}

func seqID() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("d%03d", n)
	}
}

func TestRun_NoScores(t *testing.T) {
	st := openTestStore(t)
	g := New(st, seqID(), rand.New(rand.NewSource(1)), nil)
	if _, err := g.Run(context.Background(), Params{Topic: "x", Count: 1}); err != ErrNoRankedFormats {
		t.Fatalf("err = %v, want ErrNoRankedFormats", err)
	}
}

func TestRun_ExploitOnlyStaysInTop3(t *testing.T) {
	// WHAT: explore_ratio 0 never picks outside the top 3.
	st := openTestStore(t)
	seedScoredFormats(t, st, 6)

	g := New(st, seqID(), rand.New(rand.NewSource(7)), nil)
	summary, err := g.Run(context.Background(), Params{
		Topic: "meal prep", Count: 30, ExploreRatio: 0,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Explored != 0 {
		t.Fatalf("explored = %d, want 0", summary.Explored)
	}

	top := map[string]bool{"f0": true, "f1": true, "f2": true}
	for _, id := range summary.Drafts {
		d, err := st.GetDraft(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if !top[d.FormatName] {
			t.Errorf("draft %s picked %s outside top 3", id, d.FormatName)
		}
	}
}

func TestRun_ExploreAlwaysLeavesTop3(t *testing.T) {
	// WHAT: explore_ratio 1 with more than 3 ranked formats always picks from
	// beyond the top 3.
	st := openTestStore(t)
	seedScoredFormats(t, st, 6)

	g := New(st, seqID(), rand.New(rand.NewSource(7)), nil)
	summary, err := g.Run(context.Background(), Params{
		Topic: "meal prep", Count: 20, ExploreRatio: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Explored != 20 {
		t.Fatalf("explored = %d, want 20", summary.Explored)
	}

	top := map[string]bool{"f0": true, "f1": true, "f2": true}
	for _, id := range summary.Drafts {
		d, err := st.GetDraft(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if top[d.FormatName] {
			t.Errorf("explore draft %s picked top-3 format %s", id, d.FormatName)
		}
		for _, r := range d.Rationale {
			if r == "mode=exploit" {
				t.Errorf("draft %s rationale says exploit", id)
			}
		}
	}
}

func TestRun_ExploreDegradesWithExactlyThreeFormats(t *testing.T) {
	// WHAT: With exactly 3 formats the explore tail is empty, so generation
	// falls back to exploit instead of failing.
	st := openTestStore(t)
	seedScoredFormats(t, st, 3)

	g := New(st, seqID(), rand.New(rand.NewSource(3)), nil)
	summary, err := g.Run(context.Background(), Params{
		Topic: "meal prep", Count: 5, ExploreRatio: 1,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Drafts) != 5 {
		t.Fatalf("drafts = %d, want 5", len(summary.Drafts))
	}
	if summary.Explored != 0 {
		t.Fatalf("explored = %d, want 0 with empty tail", summary.Explored)
	}
}

func TestRun_SlideFraming(t *testing.T) {
	// WHAT: Every generated draft starts with a hook and ends with a cta, and
	// slide text plus caption are never empty.
	st := openTestStore(t)
	seedScoredFormats(t, st, 2)

	g := New(st, seqID(), rand.New(rand.NewSource(11)), nil)
	summary, err := g.Run(context.Background(), Params{
		Topic: "home espresso", Objective: "follows", Count: 4, ExploreRatio: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Drafts) != 4 {
		t.Fatalf("drafts = %d, want 4", len(summary.Drafts))
	}

	for _, id := range summary.Drafts {
		d, err := st.GetDraft(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if d.Caption == "" || !strings.Contains(d.Caption, "home espresso") {
			t.Errorf("caption = %q", d.Caption)
		}
		if d.Status != store.DraftStatusReview {
			t.Errorf("status = %q", d.Status)
		}
		slides, err := st.ListDraftSlides(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if len(slides) == 0 {
			t.Fatal("no slides")
		}
		if slides[0].Role != "hook" {
			t.Errorf("first role = %q, want hook", slides[0].Role)
		}
		if slides[len(slides)-1].Role != "cta" {
			t.Errorf("last role = %q, want cta", slides[len(slides)-1].Role)
		}
		for _, sl := range slides {
			if strings.TrimSpace(sl.Text) == "" {
				t.Errorf("slide %d empty text", sl.SlideIndex)
			}
		}
	}
}

func TestRun_DeterministicUnderFixedSeed(t *testing.T) {
	// WHAT: Same seed, same inputs, same format choices and rationale.
	run := func() []*store.Draft {
		st := openTestStore(t)
		seedScoredFormats(t, st, 6)
		g := New(st, seqID(), rand.New(rand.NewSource(42)), nil)
		summary, err := g.Run(context.Background(), Params{
			Topic: "meal prep", Count: 10, ExploreRatio: 0.5,
		})
		if err != nil {
			t.Fatal(err)
		}
		var drafts []*store.Draft
		for _, id := range summary.Drafts {
			d, err := st.GetDraft(context.Background(), id)
			if err != nil {
				t.Fatal(err)
			}
			d.CreatedAt = 0 // timestamps differ between runs
			drafts = append(drafts, d)
		}
		return drafts
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestTopicKeywords(t *testing.T) {
	got := topicKeywords("Meal-Prep for busy WEEKS: meal prep 101, fast!")
	want := []string{"meal", "prep", "for", "busy", "weeks"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	if kws := topicKeywords("!!!"); len(kws) != 0 {
		t.Fatalf("keywords = %v, want none", kws)
	}
}

func TestRoleSequence_CollapsesAndFrames(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	examples := []*store.FormatExample{{FormatName: "g", ExampleID: "1", SlideCount: 5}}
	roles := []string{"proof", "proof", "reveal", "reveal", "proof"}
	var slides []*store.FormatSlide
	for i, role := range roles {
		slides = append(slides, &store.FormatSlide{
			FormatName: "g", ExampleID: "1", SlideIndex: i + 1, FilePath: "x", Role: role,
		})
	}
	if err := st.ReplaceCorpus(ctx, examples, slides, nil); err != nil {
		t.Fatal(err)
	}

	g := New(st, seqID(), rand.New(rand.NewSource(1)), nil)
	got, err := g.roleSequence(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"hook", "proof", "reveal", "proof", "cta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}
}
