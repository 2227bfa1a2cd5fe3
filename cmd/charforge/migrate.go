package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/config"
	"github.com/BaSui01/charforge/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	if subcommand == "help" || subcommand == "-h" || subcommand == "--help" {
		printMigrateUsage()
		return
	}

	// goto/force/steps 的版本号位于 flag 之前
	var positional []string
	flagArgs := args[1:]
	if len(flagArgs) > 0 && isVersionArg(flagArgs[0]) {
		positional = flagArgs[:1]
		flagArgs = flagArgs[1:]
	}

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	migrator, err := createMigrator(fs, flagArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	if err := cli.Run(context.Background(), subcommand, positional); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", subcommand, err)
		migrator.Close()
		os.Exit(1)
	}
}

// isVersionArg 版本号或步数（允许负数）
func isVersionArg(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  charforge migrate <subcommand> [version] [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  steps <n> Apply (n > 0) or rollback (n < 0) n migrations
  status    Show migration status
  version   Show current migration version
  info      Show migration summary
  goto <v>  Migrate to a specific version
  force <v> Force set migration version (use with caution)
  reset     Rollback all migrations
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  charforge migrate up
  charforge migrate up --config /etc/charforge/config.yaml
  charforge migrate down
  charforge migrate status
  charforge migrate goto 1
  charforge migrate force 0
  charforge migrate reset`)
}

// createMigrator creates a migrator from command line flags
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()

	// db-type 与 db-url 同时提供时直接使用
	if *dbType != "" && *dbURL != "" {
		return migration.NewMigratorFromURL(*dbType, *dbURL, logger)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}

	return migration.NewMigratorFromConfig(cfg, logger)
}
