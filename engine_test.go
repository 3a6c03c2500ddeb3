package tinyrel

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrel/tinyrel/access"
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
	"github.com/tinyrel/tinyrel/sqlparse"
	"github.com/tinyrel/tinyrel/storage"
)

func TestEngineQueryWritesResultFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinyrel_engine")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	sch, err := schema.New([]schema.Attribute{
		{Name: "id", Type: schema.Integer},
		{Name: "name", Type: schema.String},
	})
	require.NoError(t, err)

	dataPath := filepath.Join(dir, "people.tbl")
	f := storage.New(nil, storage.DefaultPageSize)
	require.NoError(t, f.Create(dataPath))
	f.SetSchema(sch)
	require.NoError(t, f.Append(record.NewBuilder().PushInt(1).PushString("alice").Build()))
	require.NoError(t, f.Append(record.NewBuilder().PushInt(2).PushString("bob").Build()))
	require.NoError(t, f.Close())

	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	require.NoError(t, cat.CreateTable(ctx, "people", sch.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "people", dataPath))
	require.NoError(t, cat.SetTupleCount(ctx, "people", 2))

	cfg := config.Default()
	cfg.Output.Directory = dir

	stmt, err := sqlparse.Parse("SELECT id, name FROM people WHERE id = 2")
	require.NoError(t, err)

	eng := New(cat, cfg, nil)
	require.NoError(t, eng.Query(context.Background(), access.AllPermissions, stmt, "out.tbl"))

	out, err := ioutil.ReadFile(filepath.Join(dir, "out.tbl"))
	require.NoError(t, err)
	require.Equal(t, "2|bob|\n", string(out))
}

func TestEngineQueryRequiresWritePermission(t *testing.T) {
	cat := catalog.NewMemory()
	stmt, err := sqlparse.Parse("SELECT 1 FROM people")
	require.NoError(t, err)

	eng := New(cat, nil, nil)
	err = eng.Query(context.Background(), access.ReadPerm, stmt, "out.tbl")
	require.Error(t, err)
}
