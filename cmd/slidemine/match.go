package main

import (
	"github.com/spf13/cobra"
)

func newMatchPostsCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "match-posts",
		Short: "Match every crawled post against the format corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.MatchPosts(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", -1,
		"confidence threshold in [0,1]; 0 matches everything, negative = config default")
	return cmd
}
