package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-session-service/internal/config"
	"quiz-session-service/internal/importer"
)

// NewImportCmd loads a question CSV into the catalog.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <questions.csv>",
		Short: "Import questions from a CSV file into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			result, err := importer.NewImporter(db).Import(cmd.Context(), file)
			if err != nil {
				return err
			}
			printImportResult(result)
			if result.Failed > 0 {
				return fmt.Errorf("%d rows failed to import", result.Failed)
			}
			return nil
		},
	}
}

func printImportResult(result importer.Result) {
	color.Green("imported: %d", result.Imported)
	if result.Skipped > 0 {
		color.Yellow("skipped (already in catalog): %d", result.Skipped)
	}
	if result.Failed > 0 {
		color.Red("failed: %d", result.Failed)
		for _, msg := range result.Errors {
			color.Red("  %s", msg)
		}
	}
}
