// Package main provides the costura admin command line: catalog import, calculations
// and flow maintenance against the configured persistence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/costura/pkg/cmd"
	"github.com/dukex/costura/pkg/log"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "costura",
		Usage:                 "Manage costing catalogs, flows and calculations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a data directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewImportCommand(),
			NewCalculateCommand(),
			NewFlowsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withPersistence opens the persistence configured on the root command for the
// duration of fn.
func withPersistence(ctx context.Context, command *cli.Command, fn func(p persistence.Persistence) error) error {
	logger := log.WithModule("costura")

	p := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		if err := p.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	return fn(p)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Aliases:   []string{"i"},
		Usage:     "Import styles, catalog records, BOMs and flows from a JSON file",
		ArgsUsage: "<catalog.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errors.New("catalog file is required")
			}

			catalog, err := readCatalogFile(path)
			if err != nil {
				return err
			}

			return withPersistence(ctx, command, func(p persistence.Persistence) error {
				summary, err := importCatalog(ctx, p, catalog, log.WithModule("import"))
				if err != nil {
					return err
				}

				return printJSON(command.Root().Writer, summary)
			})
		},
	}
}

func NewCalculateCommand() *cli.Command {
	return &cli.Command{
		Name:    "calculate",
		Aliases: []string{"c"},
		Usage:   "Calculate and record the cost of a variant",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "style", Usage: "Style ID", Required: true},
			&cli.StringFlag{Name: "color", Usage: "Color ID", Required: true},
			&cli.StringFlag{Name: "size", Usage: "Size ID", Required: true},
			&cli.IntFlag{Name: "pieces", Usage: "Run size", Value: 1},
			&cli.StringFlag{Name: "flow", Usage: "Flow ID (defaults to the style's current flow)"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return withPersistence(ctx, command, func(p persistence.Persistence) error {
				service := services.NewCalculation(p, nil, nil, nil, log.WithModule("calculate"))

				breakdown, err := service.CalculateVariant(ctx, services.CalculateVariantRequest{
					StyleID: command.String("style"),
					ColorID: command.String("color"),
					SizeID:  command.String("size"),
					Pieces:  command.Int("pieces"),
					FlowID:  command.String("flow"),
				})
				if err != nil {
					return err
				}

				return printJSON(command.Root().Writer, breakdown)
			})
		},
	}
}

func NewFlowsCommand() *cli.Command {
	return &cli.Command{
		Name:    "flows",
		Aliases: []string{"f"},
		Usage:   "Maintain process flows",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Aliases:   []string{"v"},
				Usage:     "Check a flow for consistency",
				ArgsUsage: "<flow-id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withPersistence(ctx, command, func(p persistence.Persistence) error {
						flows := services.NewFlow(p, nil, log.WithModule("flows"))

						report, err := flows.Validate(ctx, command.Args().First())
						if err != nil {
							return err
						}

						err = printJSON(command.Root().Writer, report)
						if err != nil {
							return err
						}

						if !report.IsValid {
							return services.ErrInconsistentFlow
						}

						return nil
					})
				},
			},
			{
				Name:  "refresh",
				Usage: "Recompute the totals of every current flow",
				Action: func(ctx context.Context, command *cli.Command) error {
					return withPersistence(ctx, command, func(p persistence.Persistence) error {
						flows := services.NewFlow(p, nil, log.WithModule("flows"))

						refreshed, err := flows.RefreshCurrent(ctx)
						if err != nil {
							return err
						}

						return printJSON(command.Root().Writer, map[string]int{"refreshed": refreshed})
					})
				},
			},
		},
	}
}
