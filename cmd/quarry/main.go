// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/poiesic/quarry"
	"github.com/poiesic/quarry/config"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/reembed"
	"github.com/poiesic/quarry/search"
	"github.com/urfave/cli/v2"
)

// openEngine is replaced in tests to inject a provider.
var openEngine = func(cfg *config.File) (*quarry.Engine, error) {
	return quarry.Open(cfg)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "quarry",
		Usage: "Multi-tenant retrieval over scientific documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory, overrides the configuration",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "Answer a query for one tenant",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tenant",
						Aliases:  []string{"t"},
						Usage:    "Tenant to query",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "task",
						Usage: "Task type override, skips classification",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (0 uses the configured default)",
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Citation traversal depth (0 uses the configured default)",
					},
					&cli.StringFlag{
						Name:  "direction",
						Usage: "Citation traversal direction (cites, cited_by)",
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Seed document ID for citation traversal",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Embed and store document bundles from YAML files",
				ArgsUsage: "<bundle.yaml>...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "tenant",
						Aliases: []string{"t"},
						Usage:   "Tenant for bundles that do not name one",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Migrate one content type to a new embedding generation",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "tenant",
						Aliases: []string{"t"},
						Usage:   "Tenant to migrate (default: every tenant)",
					},
					&cli.StringFlag{
						Name:     "kind",
						Usage:    "Content type to migrate",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Source embedding generation",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Target embedding generation",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "drop-old",
						Usage: "Delete the source partition after a complete migration",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch (0 uses the configured value)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations (0 uses the configured value)",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff (0 uses the configured value)",
					},
				},
			},
			{
				Name:   "tenants",
				Usage:  "List tenants with stored documents",
				Action: tenantsCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the --config file, or the defaults without one, and applies
// the --db override.
func loadConfig(c *cli.Context) (*config.File, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
		cfg.Storage.InMemory = false
	}
	return cfg, nil
}

func withEngine(c *cli.Context, fn func(ctx context.Context, engine *quarry.Engine) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Error("error closing engine", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	return fn(ctx, engine)
}

func queryCommand(c *cli.Context) error {
	req := search.Request{
		Text:         strings.Join(c.Args().Slice(), " "),
		Tenant:       core.TenantID(c.String("tenant")),
		TaskType:     core.TaskType(c.String("task")),
		Limit:        c.Int("limit"),
		Depth:        c.Int("depth"),
		Direction:    core.Direction(c.String("direction")),
		SeedDocument: core.ID(c.Uint64("seed")),
	}
	if strings.TrimSpace(req.Text) == "" && req.SeedDocument == 0 {
		return errors.New("query text or --seed is required")
	}

	return withEngine(c, func(ctx context.Context, engine *quarry.Engine) error {
		orchestrator, err := engine.NewOrchestrator()
		if err != nil {
			return err
		}
		defer orchestrator.Close()

		resp, err := orchestrator.Query(ctx, req)
		if err != nil {
			return err
		}
		printResponse(c.App.Writer, resp)
		if resp.IsPartial() {
			fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", resp.Partial)
		}
		return nil
	})
}

func printResponse(w io.Writer, resp *search.Response) {
	fmt.Fprintf(w, "Query %s: task=%s algorithms=%s", resp.QueryID, resp.TaskType, strings.Join(resp.Strategies, ","))
	if len(resp.Enhancements) > 0 {
		fmt.Fprintf(w, " enhancements=%s", strings.Join(resp.Enhancements, ","))
	}
	fmt.Fprintf(w, " expected accuracy %s, latency %s\n", resp.ExpectedAccuracy, resp.ExpectedLatency)
	for _, q := range resp.SubQueries {
		fmt.Fprintf(w, "  sub-query: %s\n", q)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results")
	}
	for i, r := range resp.Results {
		id := "external"
		if r.Document != nil {
			id = fmt.Sprintf("%d", r.Document.Id)
		}
		fmt.Fprintf(w, "%2d. %s [%s] score=%.3f similarity=%.3f", i+1, r.Title(), id, r.Score, r.Similarity)
		if r.Hops > 0 {
			fmt.Fprintf(w, " hops=%d", r.Hops)
		}
		if r.Demoted {
			fmt.Fprint(w, " demoted")
		}
		fmt.Fprintf(w, " via %s\n", strings.Join(r.Provenance, ","))
		for _, s := range r.Sections {
			fmt.Fprintf(w, "      section %q %.3f\n", s.Record.Attr(core.AttrHeading), s.Score)
		}
	}
	fmt.Fprintf(w, "%d results in %v\n", len(resp.Results), resp.Elapsed.Round(time.Millisecond))
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one bundle file is required")
	}
	override := core.TenantID(c.String("tenant"))

	var bundles []*ingestion.Bundle
	for _, path := range c.Args().Slice() {
		read, err := ingestion.ReadBundleFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		bundles = append(bundles, read...)
	}
	for _, b := range bundles {
		if b.Tenant.IsZero() {
			b.Tenant = override
		}
	}

	return withEngine(c, func(ctx context.Context, engine *quarry.Engine) error {
		loader, err := engine.NewLoader()
		if err != nil {
			return err
		}
		defer loader.Release()

		stored, err := loader.LoadAll(ctx, bundles)
		fmt.Fprintf(c.App.Writer, "Stored %d of %d documents\n", stored, len(bundles))
		return err
	})
}

func reembedCommand(c *cli.Context) error {
	kind := core.ContentType(c.String("kind"))
	if !kind.Valid() {
		return fmt.Errorf("unknown content type %q", kind)
	}

	return withEngine(c, func(ctx context.Context, engine *quarry.Engine) error {
		cfg := &engine.Config().Reembed
		if n := c.Int("batch-size"); n > 0 {
			cfg.BatchSize = n
		}
		if n := c.Int("max-retries"); n > 0 {
			cfg.MaxRetries = n
		}
		if d := c.Duration("retry-delay"); d > 0 {
			cfg.RetryDelay = d
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		tenants := []core.TenantID{core.TenantID(c.String("tenant"))}
		if tenants[0].IsZero() {
			var err error
			tenants, err = engine.Store().ListTenants(ctx)
			if err != nil {
				return err
			}
			if len(tenants) == 0 {
				fmt.Fprintln(c.App.Writer, "No tenants found")
				return nil
			}
		}

		reembedder, err := engine.NewReembedder(c.App.Writer)
		if err != nil {
			return err
		}
		for _, id := range tenants {
			job := reembed.Job{
				Tenant:  id,
				Kind:    kind,
				From:    c.String("from"),
				To:      c.String("to"),
				DropOld: c.Bool("drop-old"),
			}
			if _, err := reembedder.Run(ctx, job); err != nil {
				return fmt.Errorf("tenant %s: %w", id, err)
			}
		}
		return nil
	})
}

func tenantsCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, engine *quarry.Engine) error {
		tenants, err := engine.Store().ListTenants(ctx)
		if err != nil {
			return err
		}
		for _, id := range tenants {
			fmt.Fprintln(c.App.Writer, id)
		}
		return nil
	})
}
