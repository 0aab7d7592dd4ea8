package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"photon/internal/logging"
	"photon/internal/optimizer"
	"photon/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Args:  cobra.NoArgs,
		Short: "Re-run optimize whenever uploads change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var opts []optimizer.Option
			if store := ctx.openHistory(cmd.Context(), logger); store != nil {
				defer store.Close()
				opts = append(opts, optimizer.WithRecorder(store))
			}
			opt, err := optimizer.New(cfg, logger, opts...)
			if err != nil {
				return err
			}

			run := func(runCtx context.Context) error {
				_, err := opt.Run(runCtx)
				if errors.Is(err, optimizer.ErrLocked) {
					logging.WarnWithContext(logger, "skipping run; manifest locked", "run_skipped_locked",
						logging.String("lock_path", cfg.LockPath()),
						logging.String(logging.FieldImpact, "changes will be picked up by the next event"))
					return nil
				}
				return err
			}

			w := watch.New(cfg.Paths.InputDir, watch.Options{
				Debounce:   time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
				InitialRun: !skipInitial,
			}, run, logger)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", cfg.Paths.InputDir)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "no-initial", false, "Wait for the first change instead of optimizing at startup")
	return cmd
}
