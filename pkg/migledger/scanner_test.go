package migledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, root, dir, up, down string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "up.sql"), []byte(up), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(path, "down.sql"), []byte(down), 0o644))
}

func tagsOf(migrations []Migration) []string {
	tags := make([]string, len(migrations))
	for i, m := range migrations {
		tags[i] = m.Tag()
	}
	return tags
}

func TestDiscover_SortsByStamp(t *testing.T) {
	root := t.TempDir()
	writeMigration(t, root, "20230103000000_third", "c", "")
	writeMigration(t, root, "20230101000000_first", "a", "")
	writeMigration(t, filepath.Join(root, "nested"), "20230102000000_second", "b", "")

	src, err := Discover(root, NewTagValidator())
	require.NoError(t, err)

	assert.False(t, src.Explicit())
	assert.Equal(t, DialectGenerated, src.Dialect())
	assert.Equal(t, []string{
		"20230101000000_first",
		"20230102000000_second",
		"20230103000000_third",
	}, tagsOf(src.Migrations()))

	first := src.Migrations()[0].(*FileMigration)
	assert.Equal(t, filepath.Join(root, "20230101000000_first", "up.sql"), first.Up)
	assert.Equal(t, filepath.Join(root, "20230101000000_first", "down.sql"), first.Down)
	assert.Contains(t, first.Description(DirectionDown), "down.sql")
}

func TestDiscover_IgnoresNonSQLFiles(t *testing.T) {
	root := t.TempDir()
	writeMigration(t, root, "20230101000000_first", "a", "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("notes"), 0o644))

	src, err := Discover(root, NewTagValidator())
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())
}

func TestDiscover_Errors(t *testing.T) {
	v := NewTagValidator()

	t.Run("missing root", func(t *testing.T) {
		_, err := Discover(filepath.Join(t.TempDir(), "absent"), v)
		assert.ErrorIs(t, err, ErrPath)
	})

	t.Run("missing down", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "20230101000000_first")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "up.sql"), []byte("x"), 0o644))

		_, err := Discover(root, v)
		assert.ErrorIs(t, err, ErrMigrationNotFound)
	})

	t.Run("missing up", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "20230101000000_first")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "down.sql"), []byte("x"), 0o644))

		_, err := Discover(root, v)
		assert.ErrorIs(t, err, ErrMigrationNotFound)
	})

	t.Run("bad stamp", func(t *testing.T) {
		root := t.TempDir()
		writeMigration(t, root, "2023-01-01_first", "", "")

		_, err := Discover(root, v)
		assert.ErrorIs(t, err, ErrTag)
	})

	t.Run("no separator", func(t *testing.T) {
		root := t.TempDir()
		writeMigration(t, root, "first", "", "")

		_, err := Discover(root, v)
		assert.ErrorIs(t, err, ErrTag)
	})

	t.Run("bad name", func(t *testing.T) {
		root := t.TempDir()
		writeMigration(t, root, "20230101000000_First_Table", "", "")

		_, err := Discover(root, v)
		assert.ErrorIs(t, err, ErrTag)
	})

	t.Run("duplicate tag", func(t *testing.T) {
		root := t.TempDir()
		writeMigration(t, filepath.Join(root, "a"), "20230101000000_first", "", "")
		writeMigration(t, filepath.Join(root, "b"), "20230101000000_first", "", "")

		_, err := Discover(root, v)
		assert.ErrorIs(t, err, ErrTag)
	})
}

func TestRegister(t *testing.T) {
	v := NewTagValidator()

	t.Run("keeps caller order", func(t *testing.T) {
		b, err := NewEmbeddedMigration(v, "bbb")
		require.NoError(t, err)
		a, err := NewEmbeddedMigration(v, "aaa")
		require.NoError(t, err)

		src, err := Register(v, b, a)
		require.NoError(t, err)
		assert.True(t, src.Explicit())
		assert.Equal(t, DialectExplicit, src.Dialect())
		assert.Equal(t, []string{"bbb", "aaa"}, tagsOf(src.Migrations()))

		pos, ok := src.Position("aaa")
		assert.True(t, ok)
		assert.Equal(t, 1, pos)
	})

	t.Run("duplicate tag", func(t *testing.T) {
		x1 := &EmbeddedMigration{Name: "x"}
		x2 := &FnMigration{Name: "x"}

		_, err := Register(v, x1, x2)
		assert.ErrorIs(t, err, ErrTag)
	})

	t.Run("stamped file migration rejected", func(t *testing.T) {
		m := &FileMigration{Name: "init", Stamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}

		_, err := Register(v, m)
		assert.ErrorIs(t, err, ErrTag)
	})

	t.Run("constructors validate", func(t *testing.T) {
		_, err := NewEmbeddedMigration(v, "Bad Tag")
		assert.ErrorIs(t, err, ErrTag)
		_, err = NewFnMigration(v, "bad_tag")
		assert.ErrorIs(t, err, ErrTag)
		_, err = NewFileMigration(v, "")
		assert.ErrorIs(t, err, ErrTag)
	})
}

func TestFileMigration_PathsMustExist(t *testing.T) {
	v := NewTagValidator()
	m, err := NewFileMigration(v, "second")
	require.NoError(t, err)

	_, err = m.WithUp(filepath.Join(t.TempDir(), "missing.sql"))
	assert.ErrorIs(t, err, ErrMigrationNotFound)

	path := filepath.Join(t.TempDir(), "up.sql")
	require.NoError(t, os.WriteFile(path, []byte("select 1;"), 0o644))
	m, err = m.WithUp(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Up)
	assert.Equal(t, "second", m.Description(DirectionDown))
}

func TestCreateMigration(t *testing.T) {
	v := NewTagValidator()
	root := filepath.Join(t.TempDir(), "migrations")
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	dir, err := CreateMigration(root, "create-users", now, v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "20240506070809_create-users"), dir)
	assert.FileExists(t, filepath.Join(dir, "up.sql"))
	assert.FileExists(t, filepath.Join(dir, "down.sql"))

	src, err := Discover(root, v)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240506070809_create-users"}, tagsOf(src.Migrations()))

	_, err = CreateMigration(root, "create-users", now, v)
	assert.ErrorIs(t, err, ErrPath)

	_, err = CreateMigration(root, "Create Users", now, v)
	assert.ErrorIs(t, err, ErrTag)
}
