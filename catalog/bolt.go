package catalog

import (
	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/schema"
)

var tablesBucket = []byte("tables")

// Bolt is a github.com/boltdb/bolt-backed Catalog: one bucket "tables",
// keyed by table name, value the YAML-encoded Entry. This is the concrete
// instance of spec.md §6's "persistent key-value store keyed by table
// name". Dropped tables' data files are left on disk — there is no
// garbage collection of data files (Non-goal).
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if absent) a bolt-backed catalog at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "catalog: init tables bucket")
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying bolt database handle.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) get(table string) (Entry, bool, error) {
	var e Entry
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(tablesBucket).Get([]byte(table))
		if raw == nil {
			return nil
		}
		found = true
		return yaml.Unmarshal(raw, &e)
	})
	return e, found, err
}

func (b *Bolt) put(table string, e Entry) error {
	raw, err := yaml.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "catalog: encode entry")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tablesBucket).Put([]byte(table), raw)
	})
}

func (b *Bolt) Schema(ctx *enginectx.Context, table string) (*schema.Schema, error) {
	e, found, err := b.get(table)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: read entry")
	}
	if !found {
		return nil, ErrTableNotFound.New(table)
	}
	return entryToSchema(e), nil
}

func (b *Bolt) Tables(ctx *enginectx.Context) ([]string, error) {
	var out []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tablesBucket).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "catalog: list tables")
	}
	return out, nil
}

func (b *Bolt) CreateTable(ctx *enginectx.Context, table string, attrs []schema.Attribute) error {
	_, found, err := b.get(table)
	if err != nil {
		return errors.Wrap(err, "catalog: read entry")
	}
	if found {
		return ErrTableExists.New(table)
	}
	return b.put(table, Entry{Attributes: append([]schema.Attribute(nil), attrs...)})
}

func (b *Bolt) DropTable(ctx *enginectx.Context, table string) error {
	_, found, err := b.get(table)
	if err != nil {
		return errors.Wrap(err, "catalog: read entry")
	}
	if !found {
		return ErrTableNotFound.New(table)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tablesBucket).Delete([]byte(table))
	})
}

func (b *Bolt) SetTupleCount(ctx *enginectx.Context, table string, n int64) error {
	e, found, err := b.get(table)
	if err != nil {
		return errors.Wrap(err, "catalog: read entry")
	}
	if !found {
		return ErrTableNotFound.New(table)
	}
	e.TupleCount = n
	return b.put(table, e)
}

func (b *Bolt) SetDistinctCount(ctx *enginectx.Context, table, attr string, n int64) error {
	e, found, err := b.get(table)
	if err != nil {
		return errors.Wrap(err, "catalog: read entry")
	}
	if !found {
		return ErrTableNotFound.New(table)
	}
	for i := range e.Attributes {
		if e.Attributes[i].Name == attr {
			e.Attributes[i].DistinctCount = n
			return b.put(table, e)
		}
	}
	return ErrTableNotFound.New(table + "." + attr)
}

func (b *Bolt) SetDataPath(ctx *enginectx.Context, table, path string) error {
	e, found, err := b.get(table)
	if err != nil {
		return errors.Wrap(err, "catalog: read entry")
	}
	if !found {
		return ErrTableNotFound.New(table)
	}
	e.DataPath = path
	return b.put(table, e)
}
