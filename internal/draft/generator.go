// Package draft generates review-only content drafts from scored formats.
//
// Formats are ranked by a sample-size-weighted average of their proxy scores,
// then sampled under an explore/exploit policy: mostly the top 3, sometimes a
// long-shot from further down the ranking. The random source is injected so
// a fixed seed reproduces a run exactly.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"unicode"

	"github.com/hazyhaar/slidemine/idgen"
	"github.com/hazyhaar/slidemine/internal/assets"
	"github.com/hazyhaar/slidemine/internal/store"
)

// ErrNoRankedFormats is returned when no format scores exist. The scorer has
// to run before drafts can be generated.
var ErrNoRankedFormats = errors.New("draft: no ranked formats (run score-formats first)")

// DefaultExploreRatio is the stock probability of sampling outside the top 3.
const DefaultExploreRatio = 0.2

// exploitPool is how many top-ranked formats the exploit branch samples from.
const exploitPool = 3

// maxSlides caps a generated draft's slide sequence.
const maxSlides = 8

// Generator produces drafts from ranked formats.
type Generator struct {
	store  *store.Store
	newID  idgen.Generator
	rng    *rand.Rand
	logger *slog.Logger
}

// New creates a Generator. The rng must be seeded by the caller; a nil rng
// or newID falls back to defaults (non-deterministic rng).
func New(st *store.Store, newID idgen.Generator, rng *rand.Rand, logger *slog.Logger) *Generator {
	if newID == nil {
		newID = idgen.New
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: st, newID: newID, rng: rng, logger: logger}
}

// Params configures one generation run.
type Params struct {
	Topic        string
	Objective    string
	Count        int
	AccountScope []string // empty = all accounts
	ExploreRatio float64  // negative = DefaultExploreRatio
}

// Summary reports one generation run.
type Summary struct {
	Drafts   []string `json:"draft_ids"`
	Explored int      `json:"explored"`
	Topic    string   `json:"topic"`
}

// rankedFormat is one format's aggregated standing across the account scope.
type rankedFormat struct {
	name   string
	score  float64
	weight float64
}

// Run generates exactly params.Count drafts, persisting them in a single
// transaction.
func (g *Generator) Run(ctx context.Context, params Params) (*Summary, error) {
	if params.Count <= 0 {
		params.Count = 1
	}
	if params.ExploreRatio < 0 {
		params.ExploreRatio = DefaultExploreRatio
	}

	ranked, err := g.rankFormats(ctx, params.AccountScope)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, ErrNoRankedFormats
	}

	keywords := topicKeywords(params.Topic)
	summary := &Summary{Topic: params.Topic}
	batch := make([]*store.DraftWithSlides, 0, params.Count)

	for i := 0; i < params.Count; i++ {
		choice, explored := g.pick(ranked, params.ExploreRatio)
		if explored {
			summary.Explored++
		}

		roles, err := g.roleSequence(ctx, choice.name)
		if err != nil {
			return nil, fmt.Errorf("role sequence for %s: %w", choice.name, err)
		}

		draftID := g.newID()
		d := &store.Draft{
			DraftID:        draftID,
			Topic:          params.Topic,
			Objective:      params.Objective,
			FormatName:     choice.name,
			PredictedScore: choice.score,
			Caption:        caption(params.Topic, choice.name, keywords),
			Rationale: []string{
				fmt.Sprintf("format=%s", choice.name),
				fmt.Sprintf("mode=%s", mode(explored)),
				fmt.Sprintf("predicted_score=%.3f", choice.score),
			},
		}
		slides := make([]*store.DraftSlide, 0, len(roles))
		for j, role := range roles {
			slides = append(slides, &store.DraftSlide{
				DraftID:    draftID,
				SlideIndex: j + 1,
				Role:       role,
				Text:       slideText(role, params.Topic, keywords, j),
			})
		}
		batch = append(batch, &store.DraftWithSlides{Draft: d, Slides: slides})
		summary.Drafts = append(summary.Drafts, draftID)
	}

	if err := g.store.InsertDrafts(ctx, batch); err != nil {
		return nil, fmt.Errorf("persist drafts: %w", err)
	}

	g.logger.Info("draft: run complete",
		"topic", params.Topic, "count", len(summary.Drafts), "explored", summary.Explored)
	return summary, nil
}

// rankFormats aggregates scores across the scope into one weighted average
// per format, descending.
func (g *Generator) rankFormats(ctx context.Context, scope []string) ([]rankedFormat, error) {
	scores, err := g.store.ListScores(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	agg := make(map[string]*rankedFormat)
	var order []string
	for _, sc := range scores {
		rf, ok := agg[sc.FormatName]
		if !ok {
			rf = &rankedFormat{name: sc.FormatName}
			agg[sc.FormatName] = rf
			order = append(order, sc.FormatName)
		}
		w := float64(max(1, sc.SampleSize))
		rf.score += sc.ProxyScore * w
		rf.weight += w
	}

	ranked := make([]rankedFormat, 0, len(agg))
	for _, name := range order {
		rf := agg[name]
		rf.score /= rf.weight
		ranked = append(ranked, *rf)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})
	return ranked, nil
}

// pick applies the explore/exploit policy. Explore needs more than two ranked
// formats and a non-empty tail beyond the top 3; otherwise it degrades to
// exploit rather than failing the draft.
func (g *Generator) pick(ranked []rankedFormat, exploreRatio float64) (rankedFormat, bool) {
	if len(ranked) > 2 && g.rng.Float64() < exploreRatio {
		tail := ranked[exploitPool:]
		if len(tail) > 0 {
			return tail[g.rng.Intn(len(tail))], true
		}
	}
	pool := ranked
	if len(pool) > exploitPool {
		pool = pool[:exploitPool]
	}
	return pool[g.rng.Intn(len(pool))], false
}

// roleSequence resolves the canonical slide roles for a format: stored roles
// of its first example, capped, adjacent duplicates collapsed, framed by
// hook and cta.
func (g *Generator) roleSequence(ctx context.Context, formatName string) ([]string, error) {
	slides, err := g.store.SlidesForFormat(ctx, formatName)
	if err != nil {
		return nil, err
	}

	var roles []string
	for _, sl := range slides {
		if len(roles) >= maxSlides {
			break
		}
		role := sl.Role
		if len(roles) > 0 && roles[len(roles)-1] == role {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		roles = []string{string(assets.RoleHook), string(assets.RoleProof), string(assets.RoleCta)}
	}
	if roles[0] != string(assets.RoleHook) {
		roles = append([]string{string(assets.RoleHook)}, roles...)
	}
	if roles[len(roles)-1] != string(assets.RoleCta) {
		roles = append(roles, string(assets.RoleCta))
	}
	return roles, nil
}

func mode(explored bool) string {
	if explored {
		return "explore"
	}
	return "exploit"
}

// topicKeywords extracts the first 5 distinct alphanumeric tokens of the
// topic, lowercased, in order of appearance.
func topicKeywords(topic string) []string {
	seen := make(map[string]bool)
	var keywords []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if !seen[tok] && len(keywords) < 5 {
			seen[tok] = true
			keywords = append(keywords, tok)
		}
	}
	for _, r := range strings.ToLower(topic) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return keywords
}

func caption(topic, formatName string, keywords []string) string {
	tags := make([]string, 0, 3)
	for i, kw := range keywords {
		if i == 3 {
			break
		}
		tags = append(tags, "#"+kw)
	}
	if len(tags) == 0 {
		tags = append(tags, "#content")
	}
	return fmt.Sprintf("%s | format: %s %s", topic, formatName, strings.Join(tags, " "))
}

// kw returns the i-th keyword with wraparound, or the topic when none exist.
func kw(keywords []string, topic string, i int) string {
	if len(keywords) == 0 {
		return topic
	}
	return keywords[i%len(keywords)]
}

// slideText renders one slide's text from role-specific templates. Roles
// outside the template set use the proof phrasing.
func slideText(role, topic string, keywords []string, position int) string {
	switch role {
	case "hook":
		return fmt.Sprintf("You're doing %s wrong. Here's what actually works", topic)
	case "setup":
		return fmt.Sprintf("Quick context: why %s matters more than people think", kw(keywords, topic, 0))
	case "reveal":
		return fmt.Sprintf("The part nobody tells you about %s", kw(keywords, topic, 1))
	case "cta":
		return "Save this and follow for the next one"
	case "list_item":
		return fmt.Sprintf("%d. %s (underrated and free)", position+1, kw(keywords, topic, position))
	case "comparison":
		return fmt.Sprintf("%s vs %s: one of these is wasting your time", kw(keywords, topic, 0), kw(keywords, topic, 1))
	default: // proof and anything unknown
		return fmt.Sprintf("What happened when I tried %s for 30 days", kw(keywords, topic, position))
	}
}
