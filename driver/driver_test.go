package driver

import (
	"database/sql"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
	"github.com/tinyrel/tinyrel/storage"
)

func setupCatalog(t *testing.T, dir string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "catalog.db")
	b, err := catalog.OpenBolt(dbPath)
	require.NoError(t, err)
	defer b.Close()

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

	ctx := enginectx.New(nil, nil)
	require.NoError(t, b.CreateTable(ctx, "people", sch.Atts()))
	require.NoError(t, b.SetDataPath(ctx, "people", dataPath))
	require.NoError(t, b.SetTupleCount(ctx, "people", 2))

	return dbPath
}

func TestDriverQueryViaDatabaseSQL(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinyrel_driver")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	dbPath := setupCatalog(t, dir)

	db, err := sql.Open("tinyrel", dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT id, name FROM people WHERE id = 2")
	require.NoError(t, err)
	defer rows.Close()

	var got []struct {
		id   int64
		name string
	}
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		got = append(got, struct {
			id   int64
			name string
		}{id, name})
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].id)
	require.Equal(t, "bob", got[0].name)
}

func TestDriverExecHasNoWritePath(t *testing.T) {
	dir, err := ioutil.TempDir("", "tinyrel_driver_exec")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	dbPath := setupCatalog(t, dir)

	db, err := sql.Open("tinyrel", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("SELECT id FROM people")
	require.Error(t, err)
	require.True(t, ErrNoWritePath.Is(err))
}
