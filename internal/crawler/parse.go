package crawler

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ParseCount converts a compact engagement counter to an exact integer.
// Handles K/M/B suffixes ("1.2K" → 1200, "3.5M" → 3500000) and comma
// grouping ("12,345" → 12345). Tokens with no digits parse to 0; anything
// else is stripped to its digits.
func ParseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	mult := int64(1)
	switch last := s[len(s)-1]; last {
	case 'K', 'k':
		mult, s = 1_000, s[:len(s)-1]
	case 'M', 'm':
		mult, s = 1_000_000, s[:len(s)-1]
	case 'B', 'b':
		mult, s = 1_000_000_000, s[:len(s)-1]
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")

	if mult > 1 {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return digitsOnly(s)
		}
		return int64(math.Round(f * float64(mult)))
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return digitsOnly(s)
	}
	return n
}

func digitsOnly(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// CanonicalHandle reduces an account identifier (bare handle, @handle, or
// full profile URL) to a lowercase handle without the @.
func CanonicalHandle(ident string) (string, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return "", fmt.Errorf("crawler: empty account identifier")
	}
	if strings.Contains(ident, "://") {
		u, err := url.Parse(ident)
		if err != nil {
			return "", fmt.Errorf("crawler: bad profile URL %q: %w", ident, err)
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		for _, seg := range segs {
			if strings.HasPrefix(seg, "@") {
				ident = seg
				break
			}
		}
		if strings.Contains(ident, "://") {
			// No @segment; fall back to the last path segment.
			if len(segs) == 0 || segs[len(segs)-1] == "" {
				return "", fmt.Errorf("crawler: cannot extract handle from %q", ident)
			}
			ident = segs[len(segs)-1]
		}
	}
	handle := strings.ToLower(strings.TrimPrefix(ident, "@"))
	if handle == "" {
		return "", fmt.Errorf("crawler: empty handle in %q", ident)
	}
	return handle, nil
}

// ReadAccountsFile parses one identifier per line. Blank lines and lines
// starting with # are skipped.
func ReadAccountsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("crawler: open accounts file: %w", err)
	}
	defer f.Close()
	return parseAccounts(f)
}

func parseAccounts(r io.Reader) ([]string, error) {
	var accounts []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		accounts = append(accounts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("crawler: read accounts: %w", err)
	}
	return accounts, nil
}

var captionPolicy = bluemonday.StrictPolicy()

// CleanCaption strips any markup a scraped caption dragged along and
// collapses runs of whitespace. Sanitization escapes entities, so unescape
// after to keep literal &, <, > in captions readable.
func CleanCaption(raw string) string {
	clean := html.UnescapeString(captionPolicy.Sanitize(raw))
	return strings.Join(strings.Fields(clean), " ")
}
