package crawler

import (
	"context"
	"errors"
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

// fakeSource serves canned posts per handle. Handles listed in broken fail at
// resolution; URLs listed in failFetch fail at fetch.
type fakeSource struct {
	posts     map[string][]*RawPost
	broken    map[string]bool
	failFetch map[string]bool
}

func (f *fakeSource) ResolveAccount(_ context.Context, ident string) (*Account, error) {
	handle, err := CanonicalHandle(ident)
	if err != nil {
		return nil, err
	}
	if f.broken[handle] {
		return nil, errors.New("profile page timed out")
	}
	return &Account{Handle: handle, ProfileURL: "https://example.com/@" + handle}, nil
}

func (f *fakeSource) CollectPostURLs(_ context.Context, acct *Account, maxPosts int) ([]string, error) {
	var urls []string
	for _, p := range f.posts[acct.Handle] {
		if len(urls) == maxPosts {
			break
		}
		urls = append(urls, p.PostURL)
	}
	return urls, nil
}

func (f *fakeSource) FetchPost(_ context.Context, postURL string) (*RawPost, error) {
	if f.failFetch[postURL] {
		return nil, errors.New("navigation aborted")
	}
	for _, posts := range f.posts {
		for _, p := range posts {
			if p.PostURL == postURL {
				return p, nil
			}
		}
	}
	return nil, errors.New("unknown url")
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1.2K", 1200},
		{"3.5M", 3500000},
		{"999", 999},
		{"12,345", 12345},
		{"2B", 2000000000},
		{"1.5k", 1500},
		{" 42 ", 42},
		{"", 0},
		{"n/a", 0},
		{"likes: 87", 87},
		{"1.2", 12}, // no suffix, stripped to digits
	}
	for _, c := range cases {
		if got := ParseCount(c.in); got != c.want {
			t.Errorf("ParseCount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCanonicalHandle(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "@ChefSara", want: "chefsara"},
		{in: "chefsara", want: "chefsara"},
		{in: "https://www.tiktok.com/@ChefSara", want: "chefsara"},
		{in: "https://www.tiktok.com/@chefsara?lang=en", want: "chefsara"},
		{in: "  ", wantErr: true},
		{in: "@", wantErr: true},
	}
	for _, c := range cases {
		got, err := CanonicalHandle(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("CanonicalHandle(%q): want error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("CanonicalHandle(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
}

func TestParseAccounts(t *testing.T) {
	input := "# seed accounts\n@alpha\n\nhttps://example.com/@beta\n  # indented comment is still a line\n"
	got, err := parseAccounts(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"@alpha", "https://example.com/@beta"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("accounts = %v, want %v", got, want)
	}
}

func TestCleanCaption(t *testing.T) {
	got := CleanCaption("<b>5 tips</b>\n\n  you &amp; me   <script>x()</script>")
	if got != "5 tips you & me" {
		t.Fatalf("caption = %q", got)
	}
}

func TestRun_SavesPostsAndAssignsConfidence(t *testing.T) {
	st := openTestStore(t)
	src := &fakeSource{posts: map[string][]*RawPost{
		"alpha": {
			{PostID: "p1", PostURL: "u1", Caption: "five tips", Views: "1.2K", Likes: "300"},
			{PostID: "p2", PostURL: "u2", Caption: "no counters found"},
			{PostID: "p3", PostURL: "u3", Caption: "likes only", Likes: "87"},
		},
	}}

	c := New(st, src, nil)
	summary, err := c.Run(context.Background(), []string{"@alpha"}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Accounts != 1 || summary.PostsSeen != 3 || summary.PostsSaved != 3 || summary.Failures != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	ctx := context.Background()
	p1, err := st.GetCrawlPost(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p1.Views != 1200 || p1.Likes != 300 {
		t.Fatalf("p1 counters = %d/%d", p1.Views, p1.Likes)
	}
	if p1.Confidence != 0.9 {
		t.Errorf("p1 confidence = %v, want 0.9 (views and likes present)", p1.Confidence)
	}
	if p1.AccountHandle != "alpha" {
		t.Errorf("p1 handle = %q", p1.AccountHandle)
	}

	p2, _ := st.GetCrawlPost(ctx, "p2")
	if p2.Confidence != 0.55 {
		t.Errorf("p2 confidence = %v, want 0.55 (no fields)", p2.Confidence)
	}
	p3, _ := st.GetCrawlPost(ctx, "p3")
	if p3.Confidence != 0.8 {
		t.Errorf("p3 confidence = %v, want 0.8 (some fields)", p3.Confidence)
	}
}

func TestRun_FailuresDoNotAbortBatch(t *testing.T) {
	// WHAT: A broken account and a broken post URL are both recorded as
	// failures while the rest of the batch completes.
	st := openTestStore(t)
	src := &fakeSource{
		posts: map[string][]*RawPost{
			"good": {
				{PostID: "p1", PostURL: "u1", Caption: "ok", Views: "10", Likes: "1"},
				{PostID: "p2", PostURL: "u2", Caption: "dies", Views: "10", Likes: "1"},
			},
		},
		broken:    map[string]bool{"bad": true},
		failFetch: map[string]bool{"u2": true},
	}

	c := New(st, src, nil)
	summary, err := c.Run(context.Background(), []string{"@bad", "@good"}, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Accounts != 2 {
		t.Errorf("accounts = %d, want 2", summary.Accounts)
	}
	if summary.PostsSaved != 1 || summary.Failures != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	failures, err := st.ListCrawlFailures(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 2 {
		t.Fatalf("failure rows = %d, want 2", len(failures))
	}
	for _, f := range failures {
		if f.Reason == "" {
			t.Error("failure without reason")
		}
	}
}

func TestRun_RespectsPostCap(t *testing.T) {
	st := openTestStore(t)
	var posts []*RawPost
	for i := 0; i < 10; i++ {
		posts = append(posts, &RawPost{
			PostID:  string(rune('a' + i)),
			PostURL: "u" + string(rune('a'+i)),
			Views:   "5", Likes: "1",
		})
	}
	src := &fakeSource{posts: map[string][]*RawPost{"alpha": posts}}

	summary, err := New(st, src, nil).Run(context.Background(), []string{"alpha"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if summary.PostsSeen != 3 || summary.PostsSaved != 3 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRun_Reupsert(t *testing.T) {
	// WHAT: Re-crawling the same post overwrites counters instead of failing.
	st := openTestStore(t)
	src := &fakeSource{posts: map[string][]*RawPost{
		"alpha": {{PostID: "p1", PostURL: "u1", Views: "100", Likes: "5"}},
	}}
	c := New(st, src, nil)
	ctx := context.Background()

	if _, err := c.Run(ctx, []string{"alpha"}, 5); err != nil {
		t.Fatal(err)
	}
	src.posts["alpha"][0].Views = "250"
	if _, err := c.Run(ctx, []string{"alpha"}, 5); err != nil {
		t.Fatal(err)
	}

	p, err := st.GetCrawlPost(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Views != 250 {
		t.Fatalf("views after re-crawl = %d, want 250", p.Views)
	}
	n, _ := st.CountCrawlPosts(ctx)
	if n != 1 {
		t.Fatalf("posts = %d, want 1", n)
	}
}
