package main

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"accessibility-eta-service/internal/adapters/isolation"
	"accessibility-eta-service/internal/platform/db"
	"accessibility-eta-service/internal/platform/obs"
)

// newWorkerCmd is the child side of process isolation: one area job on
// stdin, worker messages on stdout, logs on stderr.
func newWorkerCmd(a *app) *cobra.Command {
	opts := factoryOptions{}
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run a single area worker (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := obs.WithLogger(cmd.Context(), a.logger)

			var conn *sql.DB
			if a.cfg.DatabaseURL != "" && a.cfg.RedisAddr == "" {
				c, err := db.Open(ctx, a.cfg.DatabaseURL, a.cfg.Engine.SquareConcurrency+1)
				if err != nil {
					return err
				}
				defer c.Close()
				conn = c
			}

			factory, closeFn, err := a.oracleFactory(ctx, opts, nil, conn)
			if err != nil {
				return err
			}
			defer closeFn()

			return isolation.ServeWorker(ctx, os.Stdin, os.Stdout, factory)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "oracle", oracleOSRM, "routing oracle: osrm or straight-line")
	cmd.Flags().Float64Var(&opts.speedKmh, "speed", 120, "straight-line oracle speed in km/h")
	return cmd
}
