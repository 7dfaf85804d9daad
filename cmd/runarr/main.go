package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/luccast/runarr/pkg/comicvine"
	"github.com/luccast/runarr/pkg/config"
	"github.com/luccast/runarr/pkg/database"
	"github.com/luccast/runarr/pkg/migrations"
	"github.com/luccast/runarr/pkg/resolvecache"
	"github.com/luccast/runarr/pkg/selection"
	"github.com/luccast/runarr/pkg/version"
	"github.com/luccast/runarr/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	app := &cli.App{
		Name:      "runarr",
		Usage:     "organize comic book archives against the Comic Vine catalog",
		ArgsUsage: "<input directory>",
		Version:   version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "destination library root (defaults to the input directory)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "report the plan without changing anything",
			},
			&cli.BoolFlag{
				Name:  "force-refresh",
				Usage: "bypass cached catalog lookups",
			},
			&cli.BoolFlag{
				Name:  "series-folder",
				Usage: "treat the input directory itself as a single series folder",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "re-resolve files that already carry embedded metadata",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "auto-select the top-ranked series instead of prompting",
			},
			&cli.StringFlag{
				Name:  "comicvine-api-key",
				Usage: "Comic Vine API key (saved to the config file)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "number of series folders processed in parallel",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("runarr failed")
	}
}

func run(c *cli.Context) error {
	log := logger.New()
	ctx := log.WithContext(c.Context)

	if c.NArg() != 1 {
		return errors.New("exactly one input directory is required")
	}
	inputDir := c.Args().First()
	if info, err := os.Stat(inputDir); err != nil || !info.IsDir() {
		return errors.Errorf("input directory does not exist: %s", inputDir)
	}

	outputDir := c.String("output")
	if outputDir == "" {
		outputDir = inputDir
		if c.Bool("series-folder") {
			// The organized folder goes next to the input folder, not inside it.
			outputDir = filepath.Dir(inputDir)
		}
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if key := c.String("comicvine-api-key"); key != "" {
		if err := cfg.SaveAPIKey(key); err != nil {
			return err
		}
		log.Info("api key saved", logger.Data{"config_dir": cfg.ConfigDir()})
	}
	if cfg.APIKey == "" {
		return errors.New("no Comic Vine API key configured; pass --comicvine-api-key once or set COMICVINE_API_KEY")
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.FolderWorkers = workers
	}

	if err := os.MkdirAll(cfg.ConfigDir(), 0o700); err != nil {
		return errors.WithStack(err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		return err
	}
	if group.ID != 0 {
		log.Info("cache database migrated", logger.Data{"group_id": group.ID})
	}

	budget := comicvine.NewBudget(cfg.RequestsPerHour, cfg.MinRequestInterval)
	client, err := comicvine.New(cfg.APIKey, budget,
		comicvine.WithMaxRetries(cfg.MaxRetries),
		comicvine.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		return err
	}

	cache := resolvecache.NewService(db, client)

	var selector selection.Selector = &selection.TerminalSelector{In: os.Stdin, Out: os.Stdout}
	if c.Bool("yes") {
		selector = &selection.AutoSelector{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	graceful := signals.Setup()
	go func() {
		<-graceful
		log.Info("interrupt received, finishing current operations")
		cancel()
	}()

	org := worker.New(cfg, cache, selector)
	summary, err := org.Run(runCtx, worker.Options{
		InputDir:     inputDir,
		OutputDir:    outputDir,
		DryRun:       c.Bool("dry-run"),
		ForceRefresh: c.Bool("force-refresh"),
		Overwrite:    c.Bool("overwrite"),
		SingleFolder: c.Bool("series-folder"),
	})
	if summary != nil {
		summary.Render(os.Stdout)
	}
	if err != nil {
		return err
	}

	log.Info("run complete", logger.Data{
		"organized": summary.Organized,
		"skipped":   summary.Skipped,
		"extras":    summary.Extras,
		"conflicts": summary.Conflicts,
		"failures":  len(summary.Failures),
		"remaining": budget.Remaining(),
	})
	return nil
}
