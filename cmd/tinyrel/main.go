// Command tinyrel is the query-engine CLI (SPEC_FULL §2, component N): it opens a
// catalog, parses one query with sqlparse, compiles and runs it through the
// root tinyrel.Engine, and writes the result to -out. Flag layout follows
// the plain flag.FlagSet style the pack's own CLI entry points use (see
// Lychee-Technology-forma/cmd/sample/main.go), not a third-party flag
// library — the teacher module itself has no CLI package to imitate more
// closely than that.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/tinyrel/tinyrel"
	"github.com/tinyrel/tinyrel/access"
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/sqlparse"
)

func main() {
	catalogPath := flag.String("catalog", "", "path to the bolt catalog file (required unless -ephemeral)")
	ephemeral := flag.Bool("ephemeral", envBool("TINYREL_EPHEMERAL", false), "use an in-memory catalog instead of -catalog (also settable via TINYREL_EPHEMERAL)")
	configPath := flag.String("config", "", "path to a TOML config file (defaults built in if omitted)")
	query := flag.String("query", "", "SELECT statement to run (required)")
	out := flag.String("out", "result.tbl", "output table path, relative to the config's output directory unless absolute")
	readOnly := flag.Bool("read-only", false, "compile with read permission only, rejecting the query if it would need to write")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *query == "" {
		fmt.Fprintln(os.Stderr, "tinyrel: -query is required")
		flag.Usage()
		os.Exit(2)
	}
	if !*ephemeral && *catalogPath == "" {
		fmt.Fprintln(os.Stderr, "tinyrel: -catalog is required unless -ephemeral")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	cat, closeCat, err := openCatalog(*ephemeral, *catalogPath)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer closeCat()

	stmt, err := sqlparse.Parse(*query)
	if err != nil {
		log.Fatalf("parse query: %v", err)
	}

	perm := access.AllPermissions
	if *readOnly {
		perm = access.ReadPerm
	}

	eng := tinyrel.New(cat, cfg, log)
	if err := eng.Query(context.Background(), perm, stmt, *out); err != nil {
		log.Fatalf("query failed: %v", err)
	}
	log.Infof("wrote result to %s", *out)
}

// envBool reads name from the environment, falling through to def when
// unset or when the value can't be cast to a bool — an env var lets
// -ephemeral be set by an orchestrator without rewriting an invocation's
// flag list.
func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func openCatalog(ephemeral bool, path string) (catalog.Catalog, func(), error) {
	if ephemeral {
		return catalog.NewMemory(), func() {}, nil
	}
	b, err := catalog.OpenBolt(path)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}
