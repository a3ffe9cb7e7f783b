package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/nnh1125/jumboboxd/internal/api"
	"github.com/nnh1125/jumboboxd/internal/auth"
	"github.com/nnh1125/jumboboxd/internal/catalog"
	"github.com/nnh1125/jumboboxd/internal/config"
	"github.com/nnh1125/jumboboxd/internal/database"
	"github.com/nnh1125/jumboboxd/internal/logging"
	"github.com/nnh1125/jumboboxd/internal/movies"
	"github.com/nnh1125/jumboboxd/internal/users"
)

const shutdownTimeout = 10 * time.Second

// Runner holds shared dependencies and provides one method per command.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.New(os.Stderr, "info")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{
		serveCommand, migrateCommand, syncUserCommand, issueTokenCommand, importMoviesCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
		r.logger.SetLevel(lvl)
	}
	return cfg, nil
}

func models() []any {
	return append([]any{&users.User{}}, movies.Models()...)
}

func (r *Runner) openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg.Database, logging.Component(r.logger, "database"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (r *Runner) newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.TokenVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeOIDC:
		return auth.NewOIDCVerifier(ctx, cfg.IssuerURL, cfg.ClientID)
	case config.AuthModeHMAC:
		return auth.NewHMACVerifier(cfg.JWTSecret, cfg.IssuerURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %q", config.ErrInvalidConfig, cfg.Mode)
	}
}

// newDirectory returns nil when no directory is configured; user sync then
// fails with an upstream error.
func (r *Runner) newDirectory(ctx context.Context, cfg config.DirectoryConfig) (users.Directory, error) {
	if cfg.BaseURL == "" {
		r.logger.Warn("identity directory not configured, user sync is disabled")
		return nil, nil
	}
	return auth.NewHTTPDirectory(ctx, cfg)
}

func (r *Runner) newMovieService(db *gorm.DB, client *catalog.Client, userStore *users.Store) *movies.Service {
	return movies.NewService(
		movies.NewStore(db),
		userStore,
		movies.NewMovieFetcher(client),
		logging.Component(r.logger, "movies"),
	)
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := r.openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db, r.logger, models()...); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	verifier, err := r.newVerifier(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to set up token verification: %w", err)
	}
	directory, err := r.newDirectory(ctx, cfg.Directory)
	if err != nil {
		return fmt.Errorf("failed to set up identity directory: %w", err)
	}

	client := catalog.NewClient(cfg.Catalog, logging.Component(r.logger, "catalog"))
	userStore := users.NewStore(db)
	userSvc := users.NewService(userStore, directory, logging.Component(r.logger, "users"))
	movieSvc := r.newMovieService(db, client, userStore)

	router := api.NewRouter(api.Deps{
		Catalog:    api.NewCatalogController(client, r.logger),
		Users:      users.NewController(userSvc, r.logger),
		Movies:     movies.NewController(movieSvc, r.logger),
		Verifier:   verifier,
		CookieName: cfg.Auth.CookieName,
		Ping:       func(ctx context.Context) error { return database.Ping(ctx, db) },
		Logger:     logging.Component(r.logger, "http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", srv.Addr, "auth", cfg.Auth.Mode, "catalog", cfg.Catalog.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := r.openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	return database.Migrate(db, r.logger, models()...)
}

func (r *Runner) SyncUser(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := r.openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	directory, err := r.newDirectory(ctx, cfg.Directory)
	if err != nil {
		return err
	}
	svc := users.NewService(users.NewStore(db), directory, logging.Component(r.logger, "users"))
	u, err := svc.Sync(ctx, cmd.String("id"))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.output, "synced %s (id=%d email=%q username=%q)\n", u.ExternalID, u.ID, u.Email, u.Username)
	return nil
}

func (r *Runner) IssueToken(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Auth.Mode != config.AuthModeHMAC {
		return fmt.Errorf("%w: issue-token needs auth.mode = %q", config.ErrInvalidConfig, config.AuthModeHMAC)
	}

	ttl := cmd.Duration("ttl")
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL()
	}
	v := auth.NewHMACVerifier(cfg.Auth.JWTSecret, cfg.Auth.IssuerURL)
	tok, err := v.IssueToken(auth.Profile{
		ExternalID: cmd.String("subject"),
		Email:      cmd.String("email"),
		Username:   cmd.String("username"),
	}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.output, tok)
	return nil
}

// ImportMovies warms the local movie table from the catalog. Movies already
// stored are skipped without a catalog request.
func (r *Runner) ImportMovies(ctx context.Context, cmd *cli.Command) error {
	from, to := cmd.Int("from"), cmd.Int("to")
	if err := catalog.ValidateMovieID(from); err != nil {
		return err
	}
	if err := catalog.ValidateMovieID(to); err != nil {
		return err
	}
	if from > to {
		return fmt.Errorf("--from (%d) must not exceed --to (%d)", from, to)
	}

	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := r.openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db, r.logger, models()...); err != nil {
		return err
	}

	client := catalog.NewClient(cfg.Catalog, logging.Component(r.logger, "catalog"))
	svc := r.newMovieService(db, client, users.NewStore(db))

	var imported, skipped atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cmd.Int("concurrency")))
	for id := from; id <= to; id++ {
		g.Go(func() error {
			m, existed, err := svc.ImportMovie(gctx, id)
			if err != nil {
				return fmt.Errorf("movie %d: %w", id, err)
			}
			if existed {
				skipped.Add(1)
				return nil
			}
			imported.Add(1)
			r.logger.Debug("imported movie", "id", m.ExternalID, "title", m.Title)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.logger.Info("import complete", "imported", imported.Load(), "skipped", skipped.Load())
	return nil
}
