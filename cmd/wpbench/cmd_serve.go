package main

import (
	"os"
	"os/signal"

	"github.com/spboyer/wpbench/internal/orchestration"
	"github.com/spboyer/wpbench/internal/webapi"
	"github.com/spboyer/wpbench/internal/webserver"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var (
		addr    string
		open    bool
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history dashboard",
		Long: `Serve stored runs over HTTP until interrupted.

Routes:
  /                      run history
  /runs/<id>             report for one run
  /api/runs              run summaries (?sort=created|score|time|title&order=asc|desc)
  /api/runs/<id>         run bundle
  /api/runs/<id>/score   run rescored with the current targets and weights
  /api/summary           aggregate figures
  /api/health            health check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			results, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			webapi.Version = version
			runner := orchestration.NewBenchmarkRunner(a.openRegistry(nil))

			srv := webserver.New(webserver.Config{
				Addr:           addr,
				OpenBrowser:    open,
				AllowedOrigins: origins,
				Out:            cmd.OutOrStdout(),
			}, webapi.NewHandlers(results, a.names(), runner.Rescore))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", webserver.DefaultAddr, "Address to listen on")
	cmd.Flags().BoolVar(&open, "open", false, "Open the dashboard in a browser")
	cmd.Flags().StringArrayVar(&origins, "allow-origin", nil, "Origin allowed to call the API cross-origin (can be repeated)")
	return cmd
}
