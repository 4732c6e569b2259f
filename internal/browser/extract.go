package browser

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/slidemine/internal/crawler"
)

// Embedded app-state script ids, checked in order.
var stateScriptIDs = []string{
	"__UNIVERSAL_DATA_FOR_REHYDRATION__",
	"SIGI_STATE",
}

// ExtractPost pulls raw post fields out of a rendered page. The platform's
// embedded JSON state is authoritative when present; otherwise meta tags and
// counter nodes in the DOM fill in what they can. Missing fields stay empty
// and are reflected in the crawler's confidence, never an error here.
func ExtractPost(pageHTML string) *crawler.RawPost {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return &crawler.RawPost{}
	}

	if raw := extractFromState(doc); raw != nil {
		return raw
	}
	return extractFromDOM(doc)
}

// flexCount tolerates numeric and string-encoded counters in state JSON.
type flexCount string

func (f *flexCount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexCount(s)
	return nil
}

// stateItem is the post record shape shared by both state blob layouts.
type stateItem struct {
	ID         string    `json:"id"`
	Desc       string    `json:"desc"`
	CreateTime flexCount `json:"createTime"`
	Stats      struct {
		PlayCount    flexCount `json:"playCount"`
		DiggCount    flexCount `json:"diggCount"`
		CommentCount flexCount `json:"commentCount"`
		ShareCount   flexCount `json:"shareCount"`
	} `json:"stats"`
}

func extractFromState(doc *html.Node) *crawler.RawPost {
	for _, id := range stateScriptIDs {
		payload := scriptContentByID(doc, id)
		if payload == "" {
			continue
		}
		if item := parseStateItem(payload); item != nil {
			return rawFromItem(item)
		}
	}
	return nil
}

func parseStateItem(payload string) *stateItem {
	// Universal layout: __DEFAULT_SCOPE__ → webapp.video-detail → itemInfo.
	var universal struct {
		DefaultScope struct {
			VideoDetail struct {
				ItemInfo struct {
					ItemStruct stateItem `json:"itemStruct"`
				} `json:"itemInfo"`
			} `json:"webapp.video-detail"`
		} `json:"__DEFAULT_SCOPE__"`
	}
	if err := json.Unmarshal([]byte(payload), &universal); err == nil {
		if it := universal.DefaultScope.VideoDetail.ItemInfo.ItemStruct; it.ID != "" {
			return &it
		}
	}

	// Legacy layout: ItemModule keyed by post id.
	var legacy struct {
		ItemModule map[string]stateItem `json:"ItemModule"`
	}
	if err := json.Unmarshal([]byte(payload), &legacy); err == nil {
		for _, it := range legacy.ItemModule {
			if it.ID != "" {
				return &it
			}
		}
	}
	return nil
}

func rawFromItem(item *stateItem) *crawler.RawPost {
	raw := &crawler.RawPost{
		PostID:   item.ID,
		Caption:  item.Desc,
		Views:    string(item.Stats.PlayCount),
		Likes:    string(item.Stats.DiggCount),
		Comments: string(item.Stats.CommentCount),
		Shares:   string(item.Stats.ShareCount),
	}
	if secs, err := strconv.ParseInt(string(item.CreateTime), 10, 64); err == nil && secs > 0 {
		ms := secs * 1000
		raw.PostedAt = &ms
	}
	return raw
}

// counterSelectors maps data-e2e attribute values to RawPost fields.
var counterSelectors = map[string]func(*crawler.RawPost, string){
	"like-count":    func(r *crawler.RawPost, v string) { r.Likes = v },
	"comment-count": func(r *crawler.RawPost, v string) { r.Comments = v },
	"share-count":   func(r *crawler.RawPost, v string) { r.Shares = v },
	"video-views":   func(r *crawler.RawPost, v string) { r.Views = v },
}

// extractFromDOM is the fallback path: og: meta tags for the caption and
// data-e2e counter nodes for engagement.
func extractFromDOM(doc *html.Node) *crawler.RawPost {
	raw := &crawler.RawPost{}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "meta":
			prop := attr(n, "property")
			if prop == "" {
				prop = attr(n, "name")
			}
			if (prop == "og:description" || prop == "description") && raw.Caption == "" {
				raw.Caption = attr(n, "content")
			}
		default:
			if set, ok := counterSelectors[attr(n, "data-e2e")]; ok {
				if text := strings.TrimSpace(nodeText(n)); text != "" {
					set(raw, text)
				}
			}
		}
	})
	return raw
}

func scriptContentByID(doc *html.Node, id string) string {
	var payload string
	walk(doc, func(n *html.Node) {
		if payload != "" || n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		if attr(n, "id") == id {
			payload = nodeText(n)
		}
	})
	return strings.TrimSpace(payload)
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}
