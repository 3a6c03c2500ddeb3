// Package catalog implements the persistent table-metadata store described
// in spec.md §6: a key-value store keyed by table name, holding each
// table's attribute list and cardinality statistics. Two implementations
// ship: Bolt (github.com/boltdb/bolt, for durability) and Memory (for
// tests and the CLI's ephemeral mode).
package catalog

import (
	"sync"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/schema"
)

// ErrTableNotFound is returned by Schema/DropTable/Set* for an unknown
// table name.
var ErrTableNotFound = errors.NewKind("catalog: table not found: %s")

// ErrTableExists is returned by CreateTable when the name is already
// registered.
var ErrTableExists = errors.NewKind("catalog: table already exists: %s")

// Entry is the persisted unit the Catalog stores per table name.
type Entry struct {
	TupleCount int64               `yaml:"tuple_count"`
	DataPath   string              `yaml:"data_path"`
	Attributes []schema.Attribute  `yaml:"attributes"`
}

// Catalog is the persistent table metadata store every table lookup and
// mutation goes through.
type Catalog interface {
	Schema(ctx *enginectx.Context, table string) (*schema.Schema, error)
	Tables(ctx *enginectx.Context) ([]string, error)
	CreateTable(ctx *enginectx.Context, table string, attrs []schema.Attribute) error
	DropTable(ctx *enginectx.Context, table string) error
	SetTupleCount(ctx *enginectx.Context, table string, n int64) error
	SetDistinctCount(ctx *enginectx.Context, table, attr string, n int64) error
	SetDataPath(ctx *enginectx.Context, table, path string) error
}

// Memory is an in-process Catalog guarded by a mutex, used by tests and
// the CLI's -ephemeral mode.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory returns an empty in-process catalog.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Schema(ctx *enginectx.Context, table string) (*schema.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[table]
	if !ok {
		return nil, ErrTableNotFound.New(table)
	}
	return entryToSchema(e), nil
}

func (m *Memory) Tables(ctx *enginectx.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for name := range m.entries {
		out = append(out, name)
	}
	return out, nil
}

func (m *Memory) CreateTable(ctx *enginectx.Context, table string, attrs []schema.Attribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[table]; ok {
		return ErrTableExists.New(table)
	}
	m.entries[table] = Entry{Attributes: append([]schema.Attribute(nil), attrs...)}
	return nil
}

func (m *Memory) DropTable(ctx *enginectx.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[table]; !ok {
		return ErrTableNotFound.New(table)
	}
	delete(m.entries, table)
	return nil
}

func (m *Memory) SetTupleCount(ctx *enginectx.Context, table string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[table]
	if !ok {
		return ErrTableNotFound.New(table)
	}
	e.TupleCount = n
	m.entries[table] = e
	return nil
}

func (m *Memory) SetDistinctCount(ctx *enginectx.Context, table, attr string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[table]
	if !ok {
		return ErrTableNotFound.New(table)
	}
	for i := range e.Attributes {
		if e.Attributes[i].Name == attr {
			e.Attributes[i].DistinctCount = n
			m.entries[table] = e
			return nil
		}
	}
	return ErrTableNotFound.New(table + "." + attr)
}

func (m *Memory) SetDataPath(ctx *enginectx.Context, table, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[table]
	if !ok {
		return ErrTableNotFound.New(table)
	}
	e.DataPath = path
	m.entries[table] = e
	return nil
}

func entryToSchema(e Entry) *schema.Schema {
	sch, _ := schema.New(e.Attributes) // names were validated at CreateTable
	sch.TupleCount = e.TupleCount
	sch.DataPath = e.DataPath
	return sch
}
