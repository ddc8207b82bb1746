package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/config"
	"github.com/nucleus/lakehouse/internal/datagen"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/objectstore"
)

type generateOptions struct {
	batch   string
	users   int
	events  int
	seed    uint64
	format  string
	outDir  string
	publish bool
	load    bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic users/events batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := root.load()
			defer func() { _ = logger.Sync() }()
			return runGenerate(cmd, cfg, logger, opts)
		},
	}
	cmd.Flags().StringVar(&opts.batch, "batch", "", "batch id used to namespace record ids (required)")
	cmd.Flags().IntVar(&opts.users, "users", 15, "number of users")
	cmd.Flags().IntVar(&opts.events, "events", 50, "number of events")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&opts.format, "format", "jsonl", "jsonl or parquet")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "write files into this directory (default \"data\" when neither --publish nor --load is set)")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "upload files to the object store raw zone")
	cmd.Flags().BoolVar(&opts.load, "load", false, "bulk-load the batch into the postgres engine's raw tables")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, opts *generateOptions) error {
	ctx := cmd.Context()
	if opts.outDir == "" && !opts.publish && !opts.load {
		opts.outDir = "data"
	}
	format, err := datagen.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	batch, err := datagen.NewGenerator(opts.batch, opts.seed).Generate(opts.users, opts.events)
	if err != nil {
		return err
	}
	logger.Info("batch generated",
		zap.String("batch", batch.ID),
		zap.Int("users", len(batch.Users)),
		zap.Int("events", len(batch.Events)),
	)

	if opts.outDir != "" {
		if err := writeBatch(opts.outDir, batch, format); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote batch %s to %s\n", batch.ID, opts.outDir)
	}

	if opts.publish {
		if cfg.ObjectStoreBucket == "" {
			return errs.New(errs.CodeInvalidInput, false, "--publish needs OBJECT_STORE_BUCKET or S3_BUCKET")
		}
		store, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectStoreEndpoint,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			Region:    cfg.ObjectStoreRegion,
			UseSSL:    cfg.ObjectStoreUseSSL,
		})
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx, cfg.ObjectStoreBucket); err != nil {
			return err
		}
		keys, err := datagen.Publish(ctx, store, cfg.ObjectStoreBucket, batch, format)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), objectstore.URI(cfg.ObjectStoreBucket, key))
		}
	}

	if opts.load {
		if cfg.EngineKind != config.EnginePostgres {
			return errs.New(errs.CodeInvalidInput, false, "--load needs the postgres engine")
		}
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := a.Postgres.CopyRows(ctx, "users", datagen.UserColumns, datagen.UserRows(batch.Users)); err != nil {
			return err
		}
		if _, err := a.Postgres.CopyRows(ctx, "events", datagen.EventColumns, datagen.EventRows(batch.Events)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d users and %d events\n", len(batch.Users), len(batch.Events))
	}

	return nil
}

func writeBatch(dir string, batch *datagen.Batch, format datagen.Format) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	write := func(key string, encode func(*bytes.Buffer) error) error {
		buf := &bytes.Buffer{}
		if err := encode(buf); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, filepath.Base(key)), buf.Bytes(), 0o644)
	}

	if err := write(datagen.UsersKey(batch.ID, format), func(buf *bytes.Buffer) error {
		if format == datagen.FormatParquet {
			return datagen.WriteParquet(buf, batch.Users)
		}
		return datagen.WriteJSONL(buf, batch.Users)
	}); err != nil {
		return fmt.Errorf("write users: %w", err)
	}
	if err := write(datagen.EventsKey(batch.ID, format), func(buf *bytes.Buffer) error {
		if format == datagen.FormatParquet {
			return datagen.WriteParquet(buf, batch.Events)
		}
		return datagen.WriteJSONL(buf, batch.Events)
	}); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}
