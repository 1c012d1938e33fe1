// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type document struct {
	data []byte
}

func (d *document) Marshal() ([]byte, error) { return d.data, nil }

func (d *document) Unmarshal(b []byte) error {
	d.data = append([]byte(nil), b...)
	return nil
}

func openTestDB(t *testing.T, options ...Option) *Accessor {
	t.Helper()
	a, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestLoadEmpty(t *testing.T) {
	a := openTestDB(t)

	doc := &document{data: []byte("untouched")}
	require.NoError(t, a.Load(context.Background(), doc, ""))
	require.Equal(t, "untouched", string(doc.data))
}

func TestSaveLoadUpsert(t *testing.T) {
	ctx := context.Background()
	a := openTestDB(t)

	require.NoError(t, a.Save(ctx, &document{data: []byte("first")}, "uid.utid"))
	require.NoError(t, a.Save(ctx, &document{data: []byte("second")}, "other"))

	got := &document{}
	require.NoError(t, a.Load(ctx, got, ""))
	require.Equal(t, "second", string(got.data))

	var rows int
	require.NoError(t, a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM token_cache`).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestNamedCachesShareDatabase(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "shared.db")

	app1, err := Open(ctx, dsn, WithName("app1"))
	require.NoError(t, err)
	defer app1.Close()
	require.NoError(t, app1.Save(ctx, &document{data: []byte("one")}, ""))

	// A second open applies no migrations and sees its own row only.
	app2, err := Open(ctx, dsn, WithName("app2"))
	require.NoError(t, err)
	defer app2.Close()

	doc := &document{}
	require.NoError(t, app2.Load(ctx, doc, ""))
	require.Nil(t, doc.data)

	require.NoError(t, app1.Load(ctx, doc, ""))
	require.Equal(t, "one", string(doc.data))
}

func TestCancelledContext(t *testing.T) {
	a := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, a.Save(ctx, &document{data: []byte("x")}, ""))
	require.Error(t, a.Load(ctx, &document{}, ""))
}
