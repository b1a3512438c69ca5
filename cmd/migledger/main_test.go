package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MIGLEDGER_CONFIG",
		"MIGLEDGER_DSN",
		"MIGLEDGER_DATABASE_TYPE",
		"MIGLEDGER_MIGRATIONS_DIR",
		"MIGLEDGER_EXECUTOR",
	} {
		t.Setenv(name, "")
	}
}

// project создаёт каталог с настройками SQLite и возвращает путь к ним.
// project creates a directory with SQLite settings and returns their path.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".migledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_type = "sqlite"
database_name = "app.db"
migration_location = "migrations"
`), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Basics(t *testing.T) {
	clearEnv(t)

	code, out, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, version+"\n", out)

	code, out, _ = runCLI(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "connect-string")

	code, _, _ = runCLI(t)
	assert.Equal(t, exitUsage, code)

	code, _, errOut := runCLI(t, "bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "unknown command: bogus")

	code, _, _ = runCLI(t, "apply", "-nope")
	assert.Equal(t, exitUsage, code)
}

func TestRun_Lifecycle(t *testing.T) {
	clearEnv(t)
	cfgPath := project(t)
	root := filepath.Dir(cfgPath)
	common := []string{"-config", cfgPath, "-no-color"}
	cli := func(cmd string, args ...string) (int, string, string) {
		return runCLI(t, append(append([]string{cmd}, common...), args...)...)
	}

	code, _, errOut := cli("new")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "exactly one")

	code, _, errOut = cli("new", "Bad_Name")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "[ERROR]")

	code, out, _ := cli("new", "create-users")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "created ")

	dirs, err := filepath.Glob(filepath.Join(root, "migrations", "*_create-users"))
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	tag := filepath.Base(dirs[0])
	require.NoError(t, os.WriteFile(filepath.Join(dirs[0], "up.sql"), []byte("CREATE TABLE users (id INTEGER);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirs[0], "down.sql"), []byte("DROP TABLE users;"), 0o644))

	code, out, _ = cli("setup")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "table created")

	code, out, _ = cli("setup")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "already exists")

	code, out, _ = cli("list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, " -> [ ] "+tag)

	code, out, _ = cli("apply", "-all")
	require.Equal(t, exitOK, code)
	assert.Equal(t, 1, strings.Count(out, "Applying: "))
	assert.Equal(t, 1, strings.Count(out, " ... ok"))
	assert.NotContains(t, out, "up "+tag)
	assert.Contains(t, out, " -> [✓] "+tag)

	code, out, _ = cli("apply")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "no un-applied up migrations found")

	code, out, _ = cli("redo")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, filepath.Join(dirs[0], "down.sql"))
	assert.Contains(t, out, filepath.Join(dirs[0], "up.sql"))
	assert.Equal(t, 2, strings.Count(out, "Applying: "))

	code, out, _ = cli("apply", "-down")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, " -> [ ] "+tag)

	code, out, _ = cli("apply", "-fake")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "(fake)")

	code, out, _ = cli("connect-string")
	require.Equal(t, exitOK, code)
	assert.Equal(t, filepath.Join(root, "app.db")+"\n", out)

	code, out, _ = cli("which-config")
	require.Equal(t, exitOK, code)
	assert.Equal(t, cfgPath+"\n", out)
}

func TestRun_FailedMigration(t *testing.T) {
	clearEnv(t)
	cfgPath := project(t)
	root := filepath.Dir(cfgPath)

	dir := filepath.Join(root, "migrations", "20230101000000_broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "up.sql"), []byte("CREATE TABLE;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "down.sql"), nil, 0o644))

	code, _, errOut := runCLI(t, "apply", "-config", cfgPath, "-no-color")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "[ERROR]")
	assert.Contains(t, errOut, "20230101000000_broken was unsuccessful")

	code, out, _ := runCLI(t, "apply", "-config", cfgPath, "-no-color", "-force")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "continuing because force was specified")
}

func TestRun_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("MIGLEDGER_DATABASE_TYPE", "sqlite")
	t.Setenv("MIGLEDGER_DSN", filepath.Join(dir, "env.db"))
	t.Setenv("MIGLEDGER_MIGRATIONS_DIR", filepath.Join(dir, "migrations"))
	cfgPath := project(t)

	code, out, _ := runCLI(t, "connect-string", "-config", cfgPath)
	require.Equal(t, exitOK, code)
	assert.Equal(t, filepath.Join(dir, "env.db")+"\n", out)

	code, out, _ = runCLI(t, "new", "-config", cfgPath, "seed")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, filepath.Join(dir, "migrations"))
}

func TestRun_BadSettings(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".migledger.toml")
	require.NoError(t, os.WriteFile(path, []byte("database_type = \"oracle\"\ndatabase_name = \"x\"\n"), 0o644))

	code, _, errOut := runCLI(t, "list", "-config", path, "-no-color")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "unsupported database type")
}

func fakeClient(t *testing.T, err error) *[]string {
	t.Helper()
	var got []string
	orig := startClient
	startClient = func(name string, args ...string) error {
		got = append([]string{name}, args...)
		return err
	}
	t.Cleanup(func() { startClient = orig })
	return &got
}

func TestRun_Shell(t *testing.T) {
	clearEnv(t)

	t.Run("sqlite", func(t *testing.T) {
		got := fakeClient(t, nil)
		cfgPath := project(t)

		code, _, _ := runCLI(t, "shell", "-config", cfgPath)
		require.Equal(t, exitOK, code)
		assert.Equal(t, []string{"sqlite3", filepath.Join(filepath.Dir(cfgPath), "app.db")}, *got)
	})

	t.Run("postgres", func(t *testing.T) {
		got := fakeClient(t, nil)
		path := filepath.Join(t.TempDir(), ".migledger.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
database_type = "postgres"
database_name = "shop"
database_user = "app"
`), 0o644))

		code, _, _ := runCLI(t, "shell", "-config", path)
		require.Equal(t, exitOK, code)
		assert.Equal(t, []string{"psql", "postgres://app@localhost:5432/shop"}, *got)
	})

	t.Run("client failure", func(t *testing.T) {
		fakeClient(t, errors.New("exit status 2"))
		cfgPath := project(t)

		code, _, errOut := runCLI(t, "shell", "-config", cfgPath, "-no-color")
		assert.Equal(t, exitError, code)
		assert.Contains(t, errOut, "sqlite3: exit status 2")
	})
}
