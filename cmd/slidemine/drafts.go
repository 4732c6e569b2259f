package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/slidemine/internal/draft"
)

func newMakeDraftsCmd() *cobra.Command {
	var (
		topic        string
		objective    string
		count        int
		accountScope []string
		exploreRatio float64
	)
	cmd := &cobra.Command{
		Use:   "make-drafts",
		Short: "Generate review-only drafts for a topic from ranked formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.MakeDrafts(cmd.Context(), draft.Params{
				Topic:        topic,
				Objective:    objective,
				Count:        count,
				AccountScope: accountScope,
				ExploreRatio: exploreRatio,
			})
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic to generate drafts for")
	cmd.Flags().StringVar(&objective, "objective", "", "objective tag recorded on each draft")
	cmd.Flags().IntVar(&count, "count", 1, "number of drafts to generate")
	cmd.Flags().StringSliceVar(&accountScope, "account-scope", nil, "restrict ranking statistics to these handles")
	cmd.Flags().Float64Var(&exploreRatio, "explore-ratio", -1,
		"probability of sampling outside the top 3 formats; negative = config default")
	cmd.MarkFlagRequired("topic")
	return cmd
}
