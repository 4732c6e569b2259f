package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/slidemine/internal/crawler"
)

func newBackfillCmd() *cobra.Command {
	var (
		accountsFile string
		maxPosts     int
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Crawl account timelines and save posts with engagement counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := crawler.ReadAccountsFile(accountsFile)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				return fmt.Errorf("no accounts in %s", accountsFile)
			}

			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.Backfill(cmd.Context(), accounts, maxPosts)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&accountsFile, "accounts-file", "", "file with one handle or profile URL per line")
	cmd.Flags().IntVar(&maxPosts, "max-posts-per-account", 0, "per-account post cap (0 = config default)")
	cmd.MarkFlagRequired("accounts-file")
	return cmd
}
