package main

import (
	"github.com/spf13/cobra"
)

func newExportDraftCmd() *cobra.Command {
	var (
		draftID    string
		outputRoot string
		accountID  string
	)
	cmd := &cobra.Command{
		Use:   "export-draft",
		Short: "Write manifest.json and upload.csv for a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.ExportDraft(cmd.Context(), draftID, outputRoot, accountID)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&draftID, "draft-id", "", "draft to export")
	cmd.Flags().StringVar(&outputRoot, "output-root", "", "export directory root (default from config)")
	cmd.Flags().StringVar(&accountID, "account-id", "", "uploader account id for the CSV row")
	cmd.MarkFlagRequired("draft-id")
	return cmd
}
