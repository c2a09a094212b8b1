package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rowbridge/config"
	"rowbridge/iceberg"
	"rowbridge/logging"
	"rowbridge/proxy"
	"rowbridge/replication"
	"rowbridge/storage"
	"rowbridge/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rowbridge",
		Short:        "Mirror Postgres tables into Iceberg files and serve them over pgwire",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newResolveCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start replication and the query proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := logging.New(cfg.LogLevel, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "config.yaml", "path to config file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := storage.Open(ctx, cfg.Storage.Type, cfg.Iceberg.Path, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.Region)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	writer := iceberg.NewWriter(store, log)
	replicator, err := replication.NewReplicator(ctx, cfg, writer, log)
	if err != nil {
		return fmt.Errorf("creating replicator: %w", err)
	}

	dbProxy, err := proxy.NewDuckDBProxy(cfg, store, log)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := replicator.Start(ctx); err != nil {
			return fmt.Errorf("replication: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := dbProxy.Start(ctx); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Err(err).Msg("shutting down")
	if commitErr := writer.Commit(context.Background()); commitErr != nil {
		log.Error().Err(commitErr).Msg("final commit failed")
	}
	return err
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve TYPE...",
		Short: "Print the logical type each declared type resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolve(cmd.OutOrStdout(), args)
		},
	}
}

func resolve(w io.Writer, declared []string) error {
	for _, raw := range declared {
		lt, err := types.ResolveString(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", raw, lt)
	}
	return nil
}
