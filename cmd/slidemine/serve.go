package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/slidemine"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API (set AUTH_PASSWORD to require basic auth)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if addr == "" {
				addr = svc.Config().Serve.Addr
			}
			srv, err := slidemine.NewHTTPServer(svc, addr, os.Getenv("AUTH_PASSWORD"))
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
