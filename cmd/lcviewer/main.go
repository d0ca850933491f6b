// Command lcviewer serves interactive light-curve dashboards: a chart of an
// object's forced photometry next to the cutout of whichever measurement
// is selected.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/lcviewer/internal/db"
	"github.com/banshee-data/lcviewer/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run dispatches to a subcommand. Arguments starting with a flag select
// serve.
func run(args []string, out io.Writer) error {
	command := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		opts, err := parseServeFlags(args)
		if err != nil {
			return err
		}
		return serve(opts)
	case "export":
		opts, err := parseExportFlags(args)
		if err != nil {
			return err
		}
		return runExport(opts, out)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		dbPath := fs.String("db", defaultDBPath, "Path to the SQLite database")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return db.RunMigrateCommand(fs.Args(), *dbPath, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `lcviewer - light-curve and cutout viewer

Usage: lcviewer <command> [options]

Commands:
  serve     Serve dashboards over HTTP (default)
  export    Write an object's chart, records and cutouts to a directory
  migrate   Manage the database schema (up, down, status, force)
  version   Show the build version
  help      Show this help message

Common Flags:
  -db <file>          SQLite database with the exposure registry (default lcviewer.db)
  -catalog <file>     Catalog database (default: the -db file)
  -config <file>      Viewer configuration (default lcviewer.json if present)
  -butler-url <url>   Fetch exposures from a remote butler instead of -db
  -instrument <name>  Instrument override
  -keep-flagged       Keep quality-flagged light-curve rows
  -dev                Install a synthetic object into -db and open it

Examples:
  lcviewer -dev
  lcviewer serve -listen :9090 -catalog dp1.db -butler-url http://butler:8080/butler
  lcviewer export -dev -out ./out
  lcviewer migrate -db lcviewer.db status
`)
}
