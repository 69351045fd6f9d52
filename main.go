package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"energy-report/internal/audit"
	"energy-report/internal/auth"
	"energy-report/internal/observability/metrics"
	"energy-report/internal/report/application"
	report "energy-report/internal/report/domain"
	"energy-report/internal/report/infrastructure/memory"
	"energy-report/internal/report/infrastructure/postgres"
	"energy-report/internal/report/infrastructure/sink"
	"energy-report/internal/report/infrastructure/source"
	reporthttp "energy-report/internal/report/interfaces/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:           "energy-report",
		Short:         "Build daily energy-consumption reports for 4G/5G cells and stations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "optional settings file (yaml, json or toml)")
	flags.String("jobs", "", "jobs definition file")
	flags.String("log_level", "", "log level (debug, info, warn, error)")
	flags.String("log_format", "", "log format (auto, console, json)")
	flags.String("database_url", "", "postgres URL of the run log; empty keeps runs in memory")
	flags.String("s3_region", "", "AWS region for s3:// inputs")

	root.AddCommand(newRunCmd(v), newValidateCmd(v), newServeCmd(v), newTokenCmd(v))
	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var (
		names []string
		date  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the selected jobs once; exits non-zero when any job failed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap(cmd, v)
			if err != nil {
				return err
			}
			defer app.close()

			jobs, err := app.jobs.Select(names...)
			if err != nil {
				return err
			}
			if date != "" {
				day, err := report.ResolveDate(date, time.Now().UTC())
				if err != nil {
					return err
				}
				jobs = application.JobSet{Jobs: jobs}.WithDate(day).Jobs
			}
			_, err = app.runner.RunAll(cmd.Context(), jobs)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&names, "job", nil, "job name to run (repeatable; default all)")
	cmd.Flags().StringVar(&date, "date", "", "target day overriding every job's date_filter")
	cmd.Flags().Int("parallel", 0, "jobs run concurrently")
	return cmd
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the jobs file without reading any input",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v, cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(s, os.Stderr)
			if err != nil {
				return err
			}
			set, err := application.LoadJobs(s.JobsFile, time.Now().UTC())
			if err != nil {
				return err
			}
			for _, job := range set.Jobs {
				logger.Info().
					Str("job", job.Name).
					Str("type", string(job.Type)).
					Str("day", job.Day()).
					Str("output", job.OutputFile).
					Msg("job valid")
			}
			return nil
		},
	}
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the optional daily schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap(cmd, v)
			if err != nil {
				return err
			}
			defer app.close()
			return serve(cmd.Context(), app)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("jwt_secret", "", "HS256 secret for bearer tokens; empty disables auth")
	cmd.Flags().String("daily_at", "", "UTC time (HH:MM) to run every job for yesterday; empty disables")
	cmd.Flags().Int("parallel", 0, "jobs run concurrently")
	return cmd
}

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API bearer token with jwt_secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v, cmd)
			if err != nil {
				return err
			}
			r, ok := auth.NormalizeRole(role)
			if !ok {
				return fmt.Errorf("%w: %q", auth.ErrInvalidRole, role)
			}
			token, err := auth.IssueJWT([]byte(s.JWTSecret), subject, r, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().String("jwt_secret", "", "HS256 secret shared with serve")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, recorded as the audit actor")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type app struct {
	settings settings
	logger   zerolog.Logger
	jobs     application.JobSet
	runner   *application.Runner
	audit    audit.Logger
	close    func()
}

func bootstrap(cmd *cobra.Command, v *viper.Viper) (*app, error) {
	s, err := loadSettings(v, cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(s, os.Stderr)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	jobs, err := application.LoadJobs(s.JobsFile, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	closeFn := func() {}
	var runs application.RunRepository = memory.NewRunRepository()
	var auditLogger audit.Logger
	if s.DatabaseURL != "" {
		db, err := postgres.Open(ctx, s.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
		repo := postgres.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run log schema: %w", err)
		}
		auditRepo := audit.NewRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		runs = repo
		auditLogger = auditRepo
		closeFn = func() { _ = db.Close() }
		metrics.Init(db, logger)
	} else {
		metrics.Init(nil, logger)
	}

	var objects source.ObjectGetter
	if s.S3Region != "" || readsS3(jobs) {
		client, err := source.NewS3Client(ctx, s.S3Region)
		if err != nil {
			closeFn()
			return nil, err
		}
		objects = client
	}

	runner := application.NewRunner(source.NewFactory(objects, logger), sink.NewFileWriter(), runs, logger, s.Parallel)

	logger.Debug().
		Str("jobs_file", s.JobsFile).
		Int("jobs", len(jobs.Jobs)).
		Int("parallel", s.Parallel).
		Bool("run_log_db", s.DatabaseURL != "").
		Msg("energy-report configured")
	return &app{settings: s, logger: logger, jobs: jobs, runner: runner, audit: auditLogger, close: closeFn}, nil
}

func readsS3(jobs application.JobSet) bool {
	for _, job := range jobs.Jobs {
		for _, ref := range job.Inputs {
			if strings.HasPrefix(ref, "s3://") {
				return true
			}
		}
	}
	return false
}

func serve(ctx context.Context, a *app) error {
	h, err := reporthttp.NewHandler(a.runner, a.jobs, a.audit)
	if err != nil {
		return err
	}
	authMW := auth.NewMiddleware([]byte(a.settings.JWTSecret), auth.NewDefaultPolicy("/healthz", "/metrics"))
	if a.settings.JWTSecret == "" {
		a.logger.Warn().Msg("jwt_secret empty, API served without authentication")
	}
	server := &http.Server{
		Addr:              a.settings.Addr,
		Handler:           reporthttp.NewRouter(h, authMW, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.settings.DailyAt != "" {
		scheduler, err := application.NewScheduler(a.runner, a.jobs, a.settings.DailyAt, a.logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
