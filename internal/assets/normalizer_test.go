package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
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

// writeCorpus lays out a corpus directory from format → file names.
func writeCorpus(t *testing.T, files map[string][]string) string {
	t.Helper()
	root := t.TempDir()
	for format, names := range files {
		dir := filepath.Join(root, "formats", format)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func TestRoleForPosition(t *testing.T) {
	tests := []struct {
		index, total int
		want         Role
	}{
		{1, 1, RoleHook},
		{1, 3, RoleHook},
		{3, 3, RoleCta},
		{2, 3, RoleSetup},
		{2, 4, RoleSetup},
		{3, 4, RoleReveal},
		{4, 4, RoleCta},
		{3, 5, RoleReveal},
		{4, 5, RoleReveal},
		{3, 6, RoleProof},
		{4, 6, RoleReveal},
		{5, 6, RoleReveal},
		{6, 6, RoleCta},
	}
	for _, tt := range tests {
		if got := RoleForPosition(tt.index, tt.total); got != tt.want {
			t.Errorf("RoleForPosition(%d, %d) = %s, want %s", tt.index, tt.total, got, tt.want)
		}
	}
}

func TestParseRole_Fallback(t *testing.T) {
	if ParseRole("hook") != RoleHook {
		t.Error("hook should parse")
	}
	for _, unknown := range []string{"list_item", "comparison", "garbage", ""} {
		if ParseRole(unknown) != RoleProof {
			t.Errorf("ParseRole(%q) should fall back to proof", unknown)
		}
	}
}

func TestRun_GroupsWellFormedFiles(t *testing.T) {
	// WHAT: Well-formed <e>.<s>.<ext> files group by (format, e) with
	// slide_count = distinct indices; roles follow position.
	// WHY: Grouping is the normalizer's whole contract.
	st := openTestStore(t)
	root := writeCorpus(t, map[string][]string{
		"myth busting": {"1.1.png", "1.2.png", "1.3.png", "2.1.jpg", "2.2.jpg", "2.3.jpg", "2.4.jpg"},
	})

	n := NewNormalizer(st, nil, nil)
	summary, err := n.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Formats != 1 || summary.Examples != 2 || summary.Slides != 7 || summary.Issues != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	examples, err := st.ListFormatExamples(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if examples[0].SlideCount != 3 || examples[1].SlideCount != 4 {
		t.Fatalf("slide counts: %+v", examples)
	}

	slides, err := st.SlidesForFormat(context.Background(), "myth busting")
	if err != nil {
		t.Fatal(err)
	}
	roles := []string{}
	for _, sl := range slides {
		roles = append(roles, sl.Role)
	}
	want := []string{"hook", "setup", "cta"}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
}

func TestRun_MalformedNamesBecomeIssues(t *testing.T) {
	// WHAT: Every malformed name yields exactly one issue and never a slide.
	// WHY: Ingestion errors recover locally; they must not crash or pollute
	// the corpus.
	st := openTestStore(t)
	root := writeCorpus(t, map[string][]string{
		"listicle": {"1.1.png", "cover.png", "notes.txt", "1.two.png", "x.1.png"},
	})

	n := NewNormalizer(st, nil, nil)
	summary, err := n.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Slides != 1 {
		t.Fatalf("slides = %d, want 1", summary.Slides)
	}
	if summary.Issues != 4 {
		t.Fatalf("issues = %d, want 4", summary.Issues)
	}

	issues, err := st.ListNormalizationIssues(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, is := range issues {
		if is.Issue != IssueNonStandardFilename {
			t.Errorf("issue = %q", is.Issue)
		}
	}
}

func TestRun_DuplicateIndexKeepsFirst(t *testing.T) {
	st := openTestStore(t)
	root := writeCorpus(t, map[string][]string{
		"duo": {"1.1.jpg", "1.1.png", "1.2.png"},
	})

	n := NewNormalizer(st, nil, nil)
	summary, err := n.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Slides != 2 || summary.Issues != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	issues, _ := st.ListNormalizationIssues(context.Background())
	if len(issues) != 1 || issues[0].Issue != IssueDuplicateSlideIndex {
		t.Fatalf("issues = %+v", issues)
	}
}

func TestRun_FullReplaceDropsRemovedFormats(t *testing.T) {
	// WHAT: A format deleted from disk disappears from the store on re-run.
	// WHY: The directory is the single source of truth.
	st := openTestStore(t)
	root := writeCorpus(t, map[string][]string{
		"keeper": {"1.1.png", "1.2.png"},
		"goner":  {"1.1.png"},
	})

	n := NewNormalizer(st, nil, nil)
	if _, err := n.Run(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(root, "formats", "goner")); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Run(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	examples, err := st.ListFormatExamples(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(examples) != 1 || examples[0].FormatName != "keeper" {
		t.Fatalf("examples = %+v", examples)
	}
}

func TestRun_MissingCorpusDir(t *testing.T) {
	st := openTestStore(t)
	n := NewNormalizer(st, nil, nil)
	_, err := n.Run(context.Background(), t.TempDir())
	if !errors.Is(err, ErrCorpusMissing) {
		t.Fatalf("err = %v, want ErrCorpusMissing", err)
	}
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ExtractText(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

func TestRun_OCRFailureDegrades(t *testing.T) {
	// WHAT: A failing OCR engine leaves ocr_text null and the run succeeds.
	// WHY: OCR is best-effort; matching falls back to caption-only similarity.
	st := openTestStore(t)
	root := writeCorpus(t, map[string][]string{"solo": {"1.1.png"}})

	n := NewNormalizer(st, &fakeOCR{err: errors.New("boom")}, nil)
	summary, err := n.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.OCRFails != 1 {
		t.Fatalf("ocr_fails = %d", summary.OCRFails)
	}

	slides, _ := st.ListFormatSlides(context.Background())
	if slides[0].OCRText != nil {
		t.Fatal("expected null ocr_text after OCR failure")
	}
}

func TestRun_OCRSuccessStored(t *testing.T) {
	st := openTestStore(t)
	root := writeCorpus(t, map[string][]string{"solo": {"1.1.png"}})

	n := NewNormalizer(st, &fakeOCR{text: "five tips inside"}, nil)
	if _, err := n.Run(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	slides, _ := st.ListFormatSlides(context.Background())
	if slides[0].OCRText == nil || *slides[0].OCRText != "five tips inside" {
		t.Fatalf("ocr_text = %v", slides[0].OCRText)
	}
}
