package db

import (
	"fmt"
	"io"
	"log"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand. Output goes to out so
// the command can be exercised from tests.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}

	migrations, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// Migrations manage the schema, so open without applying them.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: lcviewer migrate force <version_number>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q", args[1])
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
	case "status", "version":
	case "help":
		PrintMigrateHelp(out)
		return nil
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion(migrations)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	fmt.Fprintf(out, "Latest available: %d\n", latest)
	return nil
}

// PrintMigrateHelp lists the migrate actions.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: lcviewer migrate <action>

Actions:
  up               apply all pending migrations
  down             roll back the most recent migration
  status           show the current and latest schema version
  force <version>  set the schema version without running migrations (recovery)
  help             show this message
`)
}
