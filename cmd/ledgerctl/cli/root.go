package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/invoicely/invoicely/internal/analytics"
	"github.com/invoicely/invoicely/internal/app"
	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/cache"
)

// ExitError carries a non-zero exit code out of a command.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func exit(code int) error {
	if code == 0 {
		return nil
	}
	return ExitError{Code: code}
}

// NewRootCommand assembles the ledgerctl command tree. Configuration comes
// from the same environment variables as the server.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the invoicely ledger and analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
		newAnalyticsCommand(),
		newStatsCommand(),
		newExportCommand(),
		newJobsCommand(),
	)
	return root
}

// session holds the resources one command invocation needs.
type session struct {
	cfg     *app.Config
	logger  *slog.Logger
	store   *ledger.Store
	redis   *redis.Client
	closers []func()
}

func openSession(ctx context.Context, cmd *cobra.Command, migrate, withRedis bool) (*session, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if migrate {
		cfg.MigrateOnBoot = true
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := &session{cfg: cfg, logger: logger}

	store, release, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.closers = append(s.closers, release)

	if withRedis {
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, analytics cache will not be invalidated", slog.Any("error", err))
		} else if client != nil {
			s.redis = client
			s.closers = append(s.closers, func() { _ = client.Close() })
		}
	}
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// analytics reads the ledger directly; the CLI never serves stale cache.
func (s *session) analytics() *analytics.Service {
	return analytics.NewService(s.store, nil, nil, s.logger)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables when missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, true, false)
			if err != nil {
				return err
			}
			defer s.Close()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ledger schema applied (%s)\n", s.cfg.LedgerDriver)
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var (
		opts  SeedOptions
		purge bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the ledger with deterministic demo invoices",
		Example: `  ledgerctl seed --count 200 --months 18
  ledgerctl seed --purge --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, true, true)
			if err != nil {
				return err
			}
			defer s.Close()

			var invalidator ledger.Invalidator
			if s.redis != nil {
				invalidator = analytics.NewCache(s.redis, s.cfg.AnalyticsCacheTTL)
			}
			svc := ledger.NewService(s.store, invalidator, s.logger)
			if purge {
				if err := svc.Purge(cmd.Context()); err != nil {
					return err
				}
			}
			created, err := Seed(cmd.Context(), svc, opts)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d invoice(s)\n", created)
			return err
		},
	}
	cmd.Flags().IntVar(&opts.Count, "count", 50, "number of invoices to create")
	cmd.Flags().IntVar(&opts.Months, "months", 12, "spread invoice dates over this many months back from today")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed; equal seeds give equal ledgers")
	cmd.Flags().BoolVar(&purge, "purge", false, "delete every invoice first")
	return cmd
}

func newAnalyticsCommand() *cobra.Command {
	var opts AnalyticsOptions
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the revenue aggregation for a range",
		Example: `  ledgerctl analytics --currency USD --interval weekly
  ledgerctl analytics --from 2024-01-01 --to 2024-06-30 --format csv --view clients`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, false, false)
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := NewReportCLI(s.analytics())
			if err != nil {
				return err
			}
			opts.Stdout, opts.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return exit(report.AnalyticsCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.Interval, "interval", "monthly", "daily, weekly or monthly")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "currency symbol or ISO code; empty selects invoices without one")
	cmd.Flags().StringVar(&opts.View, "view", "series", "csv view: summary, series or clients")
	cmd.Flags().StringVar(&opts.Format, "format", FormatText, "text, json or csv")
	return cmd
}

func newStatsCommand() *cobra.Command {
	var opts StatisticsOptions
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ledger-wide payment statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, false, false)
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := NewReportCLI(s.analytics())
			if err != nil {
				return err
			}
			opts.Stdout, opts.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return exit(report.StatisticsCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", FormatText, "text, json or csv")
	return cmd
}

func newExportCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Dump every ledger table to one CSV file each",
		Example: `  ledgerctl export --dir backups/2024-06-30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, false, false)
			if err != nil {
				return err
			}
			defer s.Close()
			paths, err := ExportTables(cmd.Context(), s.store, dir)
			for _, p := range paths {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d table(s)\n", len(paths))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "csv-exports", "directory that receives the CSV files")
	return cmd
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var months int
	trigger := &cobra.Command{
		Use:   "trigger [job]",
		Short: "Enqueue a job; only analytics:warmup is supported",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "warmup"
			if len(args) == 1 {
				name = args[0]
			}
			c, err := jobsCLI()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			info, err := c.Trigger(cmd.Context(), name, months)
			if err != nil {
				return err
			}
			if info == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "an identical job is already queued")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().IntVar(&months, "months", 12, "trailing months to warm next to the open range")

	var scheduled int
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Print queue depth as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := jobsCLI()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]any{"stats": stats}
			if scheduled > 0 {
				entries, err := c.ListScheduled(cmd.Context(), scheduled)
				if err != nil {
					return err
				}
				out["scheduled"] = entries
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	queue.Flags().IntVar(&scheduled, "scheduled", 0, "also list this many scheduled tasks")

	cmd.AddCommand(trigger, queue)
	return cmd
}

func jobsCLI() (*JobsCLI, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
}
