package main

import (
	"github.com/spf13/cobra"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create or migrate the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.InitDB(cmd.Context()); err != nil {
				return err
			}
			return printJSON(map[string]string{
				"status": "ok",
				"db":     svc.Config().DBPath,
			})
		},
	}
}
