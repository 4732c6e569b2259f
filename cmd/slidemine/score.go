package main

import (
	"github.com/spf13/cobra"
)

func newScoreFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score-formats",
		Short: "Recompute proxy virality scores from matched posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.ScoreFormats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}
