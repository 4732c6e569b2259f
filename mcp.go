package slidemine

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/slidemine/internal/draft"
	"github.com/hazyhaar/slidemine/internal/export"
	"github.com/hazyhaar/slidemine/internal/matcher"
	"github.com/hazyhaar/slidemine/internal/report"
	"github.com/hazyhaar/slidemine/internal/scorer"
	"github.com/hazyhaar/slidemine/internal/store"
)

// NewMCPServer builds an MCP server exposing the pipeline as tools. Crawling
// is deliberately absent: it needs a browser session and belongs to the CLI.
func (svc *Service) NewMCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "slidemine",
		Version: "1.0.0",
	}, nil)
	svc.registerMCPTools(srv)
	return srv
}

// RunMCP serves MCP over stdio until the context is canceled.
func (svc *Service) RunMCP(ctx context.Context) error {
	return svc.NewMCPServer().Run(ctx, &mcp.StdioTransport{})
}

type emptyArgs struct{}

type listScoresArgs struct {
	AccountScope []string `json:"account_scope,omitempty" jsonschema:"restrict to these account handles"`
}

type listDraftsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum drafts to return (default 100)"`
}

type matchPostsArgs struct {
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"confidence threshold in [0,1], 0 matches everything (default 0.4)"`
}

type makeDraftsArgs struct {
	Topic        string   `json:"topic" jsonschema:"topic to generate drafts for"`
	Count        int      `json:"count,omitempty" jsonschema:"number of drafts (default 1)"`
	AccountScope []string `json:"account_scope,omitempty" jsonschema:"restrict ranking statistics to these accounts"`
	ExploreRatio *float64 `json:"explore_ratio,omitempty" jsonschema:"probability of sampling outside the top 3 formats (default 0.2)"`
}

type exportDraftArgs struct {
	DraftID    string `json:"draft_id" jsonschema:"draft to export"`
	OutputRoot string `json:"output_root,omitempty" jsonschema:"export directory root (default from config)"`
	AccountID  string `json:"account_id,omitempty" jsonschema:"uploader account id for the CSV row"`
}

func (svc *Service) registerMCPTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_report",
		Description: "Aggregated pipeline snapshot: posts, formats, matches, scores, drafts, exports",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, *report.Report, error) {
		rep, err := svc.Report(ctx)
		return nil, rep, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_list_scores",
		Description: "Proxy virality scores per (format, account) pair",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args listScoresArgs) (*mcp.CallToolResult, []*store.FormatScore, error) {
		if err := svc.ready(); err != nil {
			return nil, nil, err
		}
		scores, err := svc.store.ListScores(ctx, args.AccountScope)
		return nil, scores, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_list_drafts",
		Description: "Generated drafts, most recent first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args listDraftsArgs) (*mcp.CallToolResult, []*store.Draft, error) {
		if err := svc.ready(); err != nil {
			return nil, nil, err
		}
		drafts, err := svc.store.ListDrafts(ctx, args.Limit)
		return nil, drafts, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_match_posts",
		Description: "Match every crawled post against the format corpus",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args matchPostsArgs) (*mcp.CallToolResult, *matcher.Summary, error) {
		threshold := -1.0 // config default
		if args.Threshold != nil {
			threshold = *args.Threshold
		}
		summary, err := svc.MatchPosts(ctx, threshold)
		return nil, summary, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_score_formats",
		Description: "Recompute proxy virality scores from matched posts",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, *scorer.Summary, error) {
		summary, err := svc.ScoreFormats(ctx)
		return nil, summary, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_make_drafts",
		Description: "Generate review-only drafts for a topic from ranked formats",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args makeDraftsArgs) (*mcp.CallToolResult, *draft.Summary, error) {
		ratio := -1.0 // config default
		if args.ExploreRatio != nil {
			ratio = *args.ExploreRatio
		}
		summary, err := svc.MakeDrafts(ctx, draft.Params{
			Topic:        args.Topic,
			Count:        args.Count,
			AccountScope: args.AccountScope,
			ExploreRatio: ratio,
		})
		return nil, summary, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "slidemine_export_draft",
		Description: "Write manifest.json and upload.csv for a draft",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args exportDraftArgs) (*mcp.CallToolResult, *export.Result, error) {
		res, err := svc.ExportDraft(ctx, args.DraftID, args.OutputRoot, args.AccountID)
		return nil, res, err
	})
}
