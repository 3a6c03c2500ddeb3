// Package tinyrel ties the catalog, access control, config and planner
// packages together behind a single Engine type, the way the teacher
// module's root engine.go wires its Analyzer, Catalog and ProcessList
// behind sql.Engine. Grounded on dolthub-go-mysql-server's engine.go
// (the New/Query pair and the per-query sql.Context it threads through).
package tinyrel

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/tinyrel/tinyrel/access"
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/plan"
	"github.com/tinyrel/tinyrel/plan/ast"
)

// Engine is the entry point a CLI or driver.Conn drives: a catalog, the
// engine-wide tunables, and the logger every query's enginectx.Context is
// derived from.
type Engine struct {
	Catalog catalog.Catalog
	Config  *config.Config
	Log     *logrus.Logger
}

// New returns an Engine over cat. cfg defaults to config.Default() and log
// to logrus.StandardLogger() when nil.
func New(cat catalog.Catalog, cfg *config.Config, log *logrus.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Catalog: cat, Config: cfg, Log: log}
}

// Query compiles stmt under perm, runs it to completion, and writes its
// result to outputPath (see plan.Compile). The whole compile-and-run is
// wrapped in a span so a caller with an opentracing.GlobalTracer
// configured gets one trace per query, the way the teacher module traces
// query execution at the Engine boundary.
func (e *Engine) Query(parent context.Context, perm access.Permission, stmt *ast.SelectStatement, outputPath string) error {
	span, spanCtx := opentracing.StartSpanFromContext(parent, "tinyrel.Query")
	defer span.Finish()

	ctx := enginectx.New(spanCtx, e.Log)
	defer ctx.Cancel()

	op, _, err := plan.Compile(ctx, e.Catalog, e.Config, perm, stmt, outputPath)
	if err != nil {
		span.SetTag("error", true)
		return err
	}

	for {
		if ctx.Done() {
			return ctx.Err()
		}
		_, ok, err := op.Next()
		if err != nil {
			span.SetTag("error", true)
			return err
		}
		if !ok {
			return nil
		}
	}
}
