package browser

import "testing"

const universalPage = `<!DOCTYPE html><html><head>
<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">
{"__DEFAULT_SCOPE__":{"webapp.video-detail":{"itemInfo":{"itemStruct":{
"id":"7301234","desc":"my five step morning routine","createTime":"1700000000",
"stats":{"playCount":125000,"diggCount":"8.4K","commentCount":112,"shareCount":55}
}}}}}
</script></head><body></body></html>`

const legacyPage = `<html><head>
<script id="SIGI_STATE" type="application/json">
{"ItemModule":{"99":{"id":"99","desc":"desk setup tour","createTime":"1690000000",
"stats":{"playCount":"4000","diggCount":"200","commentCount":"10","shareCount":"3"}}}}
</script></head><body></body></html>`

const fallbackPage = `<html><head>
<meta property="og:description" content="3 tools I use every day"/>
</head><body>
<strong data-e2e="like-count">1.2K</strong>
<span data-e2e="comment-count"> 45 </span>
<span data-e2e="share-count">9</span>
<strong data-e2e="video-views">88.1K</strong>
</body></html>`

func TestExtractPost_UniversalState(t *testing.T) {
	raw := ExtractPost(universalPage)
	if raw.PostID != "7301234" {
		t.Fatalf("post id = %q", raw.PostID)
	}
	if raw.Caption != "my five step morning routine" {
		t.Errorf("caption = %q", raw.Caption)
	}
	if raw.Views != "125000" || raw.Likes != "8.4K" || raw.Comments != "112" || raw.Shares != "55" {
		t.Errorf("counters = %q/%q/%q/%q", raw.Views, raw.Likes, raw.Comments, raw.Shares)
	}
	if raw.PostedAt == nil || *raw.PostedAt != 1700000000000 {
		t.Errorf("posted_at = %v", raw.PostedAt)
	}
}

func TestExtractPost_LegacyState(t *testing.T) {
	raw := ExtractPost(legacyPage)
	if raw.PostID != "99" || raw.Caption != "desk setup tour" {
		t.Fatalf("raw = %+v", raw)
	}
	if raw.Views != "4000" || raw.Likes != "200" {
		t.Errorf("counters = %q/%q", raw.Views, raw.Likes)
	}
}

func TestExtractPost_DOMFallback(t *testing.T) {
	raw := ExtractPost(fallbackPage)
	if raw.PostID != "" {
		t.Errorf("fallback should not invent a post id, got %q", raw.PostID)
	}
	if raw.Caption != "3 tools I use every day" {
		t.Errorf("caption = %q", raw.Caption)
	}
	if raw.Views != "88.1K" || raw.Likes != "1.2K" || raw.Comments != "45" || raw.Shares != "9" {
		t.Errorf("counters = %q/%q/%q/%q", raw.Views, raw.Likes, raw.Comments, raw.Shares)
	}
}

func TestExtractPost_EmptyPage(t *testing.T) {
	raw := ExtractPost("<html><body>nothing here</body></html>")
	if raw.PostID != "" || raw.Caption != "" || raw.Views != "" {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestCanonicalPostURL(t *testing.T) {
	profile := "https://www.tiktok.com/@chefsara"
	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"https://www.tiktok.com/@chefsara/video/123?lang=en", "https://www.tiktok.com/@chefsara/video/123", true},
		{"https://www.tiktok.com/@chefsara/photo/456", "https://www.tiktok.com/@chefsara/photo/456", true},
		{"https://www.tiktok.com/@other", "", false},
		{"https://evil.example.com/@chefsara/video/123", "", false},
		{"/relative/video/123", "", false},
	}
	for _, c := range cases {
		got, ok := canonicalPostURL(profile, c.href)
		if ok != c.ok || got != c.want {
			t.Errorf("canonicalPostURL(%q) = %q, %v; want %q, %v", c.href, got, ok, c.want, c.ok)
		}
	}
}

func TestPostIDFromURL(t *testing.T) {
	if got := postIDFromURL("https://www.tiktok.com/@a/video/789"); got != "789" {
		t.Fatalf("id = %q", got)
	}
	if got := postIDFromURL("https://www.tiktok.com/"); got != "" {
		t.Fatalf("id = %q, want empty", got)
	}
}
