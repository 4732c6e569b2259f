package main

import (
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print an aggregated pipeline snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := svc.Report(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}
}
