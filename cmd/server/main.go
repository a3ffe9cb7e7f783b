package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nnh1125/jumboboxd/internal/logging"
)

func main() {
	logger := logging.New(os.Stderr, os.Getenv("LOG_LEVEL"))
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:  "jumboboxd",
		Usage: "Movie tracking API: watched list, watchlist and reviews",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("JUMBOBOXD_CONFIG"),
			},
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("application error", "err", err)
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Action: r.Serve,
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create or update the database schema",
		Action: r.Migrate,
	}
}

func syncUserCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync-user",
		Usage: "Pull a user from the identity provider into the local database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Usage:    "External user id",
				Required: true,
			},
		},
		Action: r.SyncUser,
	}
}

func issueTokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "issue-token",
		Usage: "Sign a development token (auth.mode = hmac only)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "subject",
				Aliases:  []string{"s"},
				Usage:    "External user id to put in the sub claim",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "Email claim",
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "Username claim",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime, defaults to auth.token_ttl_hours",
			},
		},
		Action: r.IssueToken,
	}
}

func importMoviesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import-movies",
		Usage: "Cache a range of catalog movies in the local database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "from",
				Usage: "First catalog id",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "to",
				Usage: "Last catalog id, inclusive",
				Value: 249,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Parallel catalog requests",
				Value: 4,
			},
		},
		Action: r.ImportMovies,
	}
}
