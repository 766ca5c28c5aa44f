package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	amqpad "hotel_catalog/internal/adapters/amqp"
	"hotel_catalog/internal/adapters/observability"
	redisad "hotel_catalog/internal/adapters/redis"
	"hotel_catalog/internal/app"
	"hotel_catalog/internal/shared"
	mysqlrepo "hotel_catalog/internal/storage/mysql"
	"hotel_catalog/internal/syncjob"
)

func newRootCmd() *cobra.Command {
	// env (and .env) first; flags override
	cfg := shared.Load()
	sc := &cfg.Sync
	var reset bool

	cmd := &cobra.Command{
		Use:   "catalogsync",
		Short: "Bulk load a hotel dump into the catalog",
		Long: `catalogsync streams a newline-delimited JSON hotel dump, filters and
maps each record, and upserts the survivors into the catalog in concurrent
batches. Progress is checkpointed after every batch group so an interrupted
run resumes where it stopped.`,
		Example: `  # Resume-capable import with default settings
  catalogsync --input hotels.jsonl

  # Stricter filter with premium chains and target countries
  catalogsync --input hotels.jsonl --rules rules.yaml --min-stars 4`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = observability.NewLogger(cfg.AppEnv, "catalogsync", cfg.LogLevel)
			cfg.LogWarnings()
			return run(cmd.Context(), cfg, reset)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&sc.Input, "input", "i", sc.Input, "NDJSON dump to import")
	f.StringVar(&sc.CheckpointPath, "checkpoint", sc.CheckpointPath, "checkpoint file")
	f.StringVar(&sc.FailurePath, "failures", sc.FailurePath, "file receiving records whose batch failed")
	f.StringVar(&sc.RulesPath, "rules", sc.RulesPath, "YAML filter rules (premium_chains, target_countries)")
	f.IntVar(&sc.BatchSize, "batch-size", sc.BatchSize, "records per upsert batch")
	f.IntVar(&sc.Concurrency, "concurrency", sc.Concurrency, "batches in flight per group")
	f.DurationVar(&sc.GroupDelay, "group-delay", sc.GroupDelay, "pause between batch groups")
	f.IntVar(&sc.MaxAttempts, "max-attempts", sc.MaxAttempts, "upsert attempts per batch")
	f.DurationVar(&sc.RetryBaseDelay, "retry-delay", sc.RetryBaseDelay, "base retry delay, multiplied by the attempt number")
	f.IntVar(&sc.MinStars, "min-stars", sc.MinStars, "minimum star rating")
	f.BoolVar(&sc.SkipClosed, "skip-closed", sc.SkipClosed, "drop hotels marked closed")
	f.BoolVar(&reset, "reset", false, "discard an existing checkpoint and start from line 1")

	return cmd
}

func run(ctx context.Context, cfg shared.Config, reset bool) error {
	sc := cfg.Sync
	rules, err := syncjob.LoadRules(sc.RulesPath, syncjob.Rules{MinStars: sc.MinStars, SkipClosed: sc.SkipClosed})
	if err != nil {
		return err
	}

	ckpt := syncjob.NewCheckpoint(sc.CheckpointPath)
	if reset {
		if err := ckpt.Remove(); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
	}

	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN, cfg.DBPoolSize)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := mysqlrepo.New(db)

	var opts []syncjob.Option
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; cached rows expire by TTL")
		} else {
			opts = append(opts, syncjob.WithInvalidator(app.NewCatalogFetcher(repo, rc, cfg.CacheTTL)))
		}
	}
	if cfg.AMQPURL != "" {
		opts = append(opts, syncjob.WithPublisher(amqpad.New(cfg.AMQPURL)))
	}

	log.Info().
		Str("input", sc.Input).
		Int("batch_size", sc.BatchSize).
		Int("concurrency", sc.Concurrency).
		Int("min_stars", rules.MinStars).
		Int("premium_chains", len(rules.PremiumChains)).
		Int("target_countries", len(rules.TargetCountries)).
		Msg("sync starting")

	job := syncjob.New(repo, rules, ckpt, syncjob.Options{
		BatchSize:      sc.BatchSize,
		Concurrency:    sc.Concurrency,
		GroupDelay:     sc.GroupDelay,
		MaxAttempts:    sc.MaxAttempts,
		RetryBaseDelay: sc.RetryBaseDelay,
		FailurePath:    sc.FailurePath,
		MaxWriters:     cfg.DBPoolSize,
	}, opts...)

	st, err := job.RunFile(ctx, sc.Input)
	if errors.Is(err, context.Canceled) {
		log.Warn().Str("checkpoint", ckpt.Path()).Msg("interrupted; checkpoint preserves resume state")
		return fmt.Errorf("interrupted: %w", err)
	}
	if err != nil {
		log.Error().Err(err).Str("checkpoint", ckpt.Path()).Msg("sync aborted; checkpoint preserves resume state")
		return err
	}
	if n := len(st.Failures); n > 0 {
		return fmt.Errorf("%d records failed; see %s", n, sc.FailurePath)
	}
	return nil
}
