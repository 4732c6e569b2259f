package main

import (
	"github.com/spf13/cobra"
)

func newIngestAssetsCmd() *cobra.Command {
	var (
		assetsRoot string
		withOCR    bool
	)
	cmd := &cobra.Command{
		Use:   "ingest-assets",
		Short: "Rebuild the format corpus from the assets directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.IngestAssets(cmd.Context(), assetsRoot, withOCR)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&assetsRoot, "assets-root", "", "corpus root holding formats/ (default from config)")
	cmd.Flags().BoolVar(&withOCR, "with-ocr", false, "extract slide text with tesseract")
	return cmd
}
