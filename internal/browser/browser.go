// Package browser is the rod-backed PostSource: it drives a stealth Chrome
// session to load profile timelines and post pages, handing raw extracted
// fields back to the crawler.
//
// Chrome is launched once per Source and reused across accounts. Heavy
// resource types (images, fonts, media) are blocked by default since only
// the DOM and embedded JSON state matter for extraction.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/slidemine/internal/crawler"
	"github.com/hazyhaar/slidemine/webguard"
)

// Config configures the browser source.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Platform selects the profile URL scheme. Default: "tiktok".
	Platform string

	// NavTimeout bounds each page navigation. Default: 30s.
	NavTimeout time.Duration

	// ScrollAttempts bounds timeline pagination. Default: 8.
	ScrollAttempts int

	// ScrollPause is the settle time between scrolls. Default: 1.5s.
	ScrollPause time.Duration

	// ResourceBlocking lists resource types to block.
	// Default: images, fonts, media.
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Platform == "" {
		c.Platform = "tiktok"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.ScrollAttempts <= 0 {
		c.ScrollAttempts = 8
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 1500 * time.Millisecond
	}
	if c.ResourceBlocking == nil {
		c.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// profileBase maps platform names to profile URL prefixes.
var profileBase = map[string]string{
	"tiktok":    "https://www.tiktok.com/@",
	"instagram": "https://www.instagram.com/",
}

// Source implements crawler.PostSource on a live Chrome session.
type Source struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewSource creates a Source. Call Start before use.
func NewSource(cfg Config) *Source {
	cfg.defaults()
	return &Source{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("browser: source is closed")
	}
	if s.browser != nil {
		return nil
	}

	var wsURL string
	if s.cfg.RemoteURL != "" {
		wsURL = s.cfg.RemoteURL
		s.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		s.cfg.Logger.Info("browser: launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b
	return nil
}

// Close shuts down Chrome.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return nil
}

// ResolveAccount canonicalizes an identifier and checks the profile URL is
// safe to fetch.
func (s *Source) ResolveAccount(_ context.Context, ident string) (*crawler.Account, error) {
	handle, err := crawler.CanonicalHandle(ident)
	if err != nil {
		return nil, err
	}
	base, ok := profileBase[s.cfg.Platform]
	if !ok {
		return nil, fmt.Errorf("browser: unknown platform %q", s.cfg.Platform)
	}
	profileURL := base + handle
	if err := webguard.ValidateURL(profileURL); err != nil {
		return nil, err
	}
	return &crawler.Account{Handle: handle, ProfileURL: profileURL}, nil
}

// CollectPostURLs loads the profile and scrolls the timeline until maxPosts
// post links are found or the scroll budget runs out.
func (s *Source) CollectPostURLs(ctx context.Context, acct *crawler.Account, maxPosts int) ([]string, error) {
	page, err := s.openPage(ctx, acct.ProfileURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	seen := make(map[string]bool)
	var urls []string
	for attempt := 0; attempt <= s.cfg.ScrollAttempts; attempt++ {
		hrefs, err := pageLinks(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("browser: collect links: %w", err)
		}
		for _, href := range hrefs {
			postURL, ok := canonicalPostURL(acct.ProfileURL, href)
			if !ok || seen[postURL] {
				continue
			}
			seen[postURL] = true
			urls = append(urls, postURL)
			if len(urls) >= maxPosts {
				return urls, nil
			}
		}
		if attempt == s.cfg.ScrollAttempts {
			break
		}
		if _, err := page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			s.cfg.Logger.Warn("browser: scroll failed", "account", acct.Handle, "error", err)
			break
		}
		select {
		case <-ctx.Done():
			return urls, ctx.Err()
		case <-time.After(s.cfg.ScrollPause):
		}
	}
	return urls, nil
}

// FetchPost opens one post page and extracts raw fields: embedded JSON app
// state first, HTML meta/DOM fallback second.
func (s *Source) FetchPost(ctx context.Context, postURL string) (*crawler.RawPost, error) {
	if err := webguard.ValidateURL(postURL); err != nil {
		return nil, err
	}
	page, err := s.openPage(ctx, postURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: read DOM: %w", err)
	}
	pageHTML := res.Value.Str()
	if int64(len(pageHTML)) > webguard.MaxResponseBody {
		pageHTML = pageHTML[:webguard.MaxResponseBody]
	}

	raw := ExtractPost(pageHTML)
	raw.PostURL = postURL
	if raw.PostID == "" {
		raw.PostID = postIDFromURL(postURL)
	}
	if raw.PostID == "" {
		return nil, fmt.Errorf("browser: no post id extractable from %s", postURL)
	}
	return raw, nil
}

func (s *Source) openPage(ctx context.Context, pageURL string) (*rod.Page, error) {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	if err := s.blockResources(page); err != nil {
		s.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return page, nil
}

func (s *Source) blockResources(page *rod.Page) error {
	blockSet := make(map[string]bool, len(s.cfg.ResourceBlocking))
	for _, t := range s.cfg.ResourceBlocking {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch strings.ToLower(string(h.Request.Type())) {
		case "image":
			if blockSet["images"] {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		case "font":
			if blockSet["fonts"] {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		case "media":
			if blockSet["media"] {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return nil
}

func pageLinks(ctx context.Context, page *rod.Page) ([]string, error) {
	res, err := page.Context(ctx).Eval(
		`() => Array.from(document.querySelectorAll("a[href]")).map(a => a.href)`)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	for _, v := range res.Value.Arr() {
		hrefs = append(hrefs, v.Str())
	}
	return hrefs, nil
}

// canonicalPostURL keeps hrefs that look like post permalinks on the same
// host as the profile, stripped of query noise.
func canonicalPostURL(profileURL, href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return "", false
	}
	p, err := url.Parse(profileURL)
	if err != nil || u.Host != p.Host {
		return "", false
	}
	if !strings.Contains(u.Path, "/video/") && !strings.Contains(u.Path, "/photo/") &&
		!strings.Contains(u.Path, "/p/") {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

func postIDFromURL(postURL string) string {
	u, err := url.Parse(postURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return segs[i]
		}
	}
	return ""
}
