package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"migledger/pkg/migledger"
	"migledger/pkg/migledger/drivers/shell"
)

var errUsage = errors.New("usage error")

// runSetup создаёт таблицу журнала.
// runSetup creates the ledger table.
func runSetup(ctx context.Context, env *cliEnv) error {
	m, closeFn, err := env.open(ctx, false)
	if err != nil {
		return err
	}
	defer closeFn()

	created, err := m.Setup(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(env.stdout, "%s table created %s\n", migledger.LedgerTable, green("✓"))
		return nil
	}
	fmt.Fprintf(env.stdout, "%s table already exists %s\n", migledger.LedgerTable, green("✓"))
	return nil
}

// runList выводит статус миграций.
// Вход: ctx, env.
// Выход: печать результата или ошибка.
// Назначение: выполнить команду list.
// runList prints the migration status.
// Input: ctx, env.
// Output: printed status or an error.
// Purpose: execute the list command.
func runList(ctx context.Context, env *cliEnv) error {
	m, closeFn, err := env.open(ctx, true)
	if err != nil {
		return err
	}
	defer closeFn()

	return printStatus(ctx, env, m)
}

func printStatus(ctx context.Context, env *cliEnv, m *migledger.Migrator) error {
	statuses, err := m.List(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintf(env.stdout, "No migrations found under %s\n", env.cfg.MigrationDir())
		return nil
	}

	fmt.Fprintln(env.stdout, "Current Migration Status:")
	for _, st := range statuses {
		mark := " "
		if st.Applied {
			mark = green("✓")
		}
		fmt.Fprintf(env.stdout, " -> [%s] %s\n", mark, st.Tag)
	}
	return nil
}

// runApply запускает применение или откат миграций.
// Вход: ctx, env, opts направление и флаги.
// Выход: ошибка при неудаче; «нет изменений» не является ошибкой.
// Назначение: выполнить команду apply.
// runApply applies or reverts migrations.
// Input: ctx, env, opts with direction and flags.
// Output: error on failure; "no changes" is not an error.
// Purpose: execute the apply command.
func runApply(ctx context.Context, env *cliEnv, opts migledger.Options) error {
	m, closeFn, err := env.open(ctx, true)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := m.Setup(ctx); err != nil {
		return err
	}

	_, err = m.Apply(ctx, opts)
	if migledger.IsMigrationComplete(err) {
		fmt.Fprintf(env.stdout, "no un-applied %s migrations found in %s\n", opts.Direction, env.cfg.MigrationDir())
		err = nil
	}
	if err != nil {
		return err
	}

	return printStatus(ctx, env, m)
}

// runRedo откатывает и применяет заново.
// runRedo reverts and re-applies.
func runRedo(ctx context.Context, env *cliEnv, all, force, fake bool) error {
	m, closeFn, err := env.open(ctx, true)
	if err != nil {
		return err
	}
	defer closeFn()

	_, err = m.Redo(ctx, all, force, fake)
	if migledger.IsMigrationComplete(err) {
		fmt.Fprintln(env.stdout, "no applied migrations to redo")
		err = nil
	}
	if err != nil {
		return err
	}

	return printStatus(ctx, env, m)
}

// runNew создаёт каталог новой миграции.
// runNew creates a new migration directory.
func runNew(_ context.Context, env *cliEnv) error {
	if len(env.args) != 1 {
		return fmt.Errorf("%w: new requires exactly one <tag> argument", errUsage)
	}
	dir, err := migledger.CreateMigration(env.cfg.MigrationDir(), env.args[0], time.Now(), env.v)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "created %s\n", dir)
	return nil
}

func runConnectString(_ context.Context, env *cliEnv) error {
	var (
		out string
		err error
	)
	if env.cfg.Settings.DatabaseType == migledger.DatabaseSQLite {
		out, err = env.cfg.DatabasePath()
	} else {
		out, err = env.cfg.ConnectString()
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, out)
	return nil
}

// startClient запускает интерактивный клиент БД на терминале процесса.
// startClient runs an interactive database client on the process terminal.
var startClient = func(name string, args ...string) error {
	cmd := exec.Command(name, args...) //nolint:gosec // client and target come from settings
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// runShell открывает psql или sqlite3 для базы из настроек.
// Вход: env с настройками.
// Выход: ошибка запуска или ненулевой код клиента.
// Назначение: ручная работа с той же БД, что и у миграций.
// runShell opens psql or sqlite3 on the configured database.
// Input: env with settings.
// Output: a start error or the client's non-zero exit.
// Purpose: hands-on access to the database the migrations run against.
func runShell(_ context.Context, env *cliEnv) error {
	var (
		bin    string
		target string
		err    error
	)
	if env.cfg.Settings.DatabaseType == migledger.DatabaseSQLite {
		bin = shell.SQLiteClient
		target, err = env.cfg.DatabasePath()
	} else {
		bin = shell.PostgresClient
		target, err = env.cfg.ConnectString()
	}
	if err != nil {
		return err
	}

	env.logger.Debug("starting database client", "client", bin)
	if err := startClient(bin, target); err != nil {
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}

func runWhichConfig(_ context.Context, env *cliEnv) error {
	if env.cfg.Path == "" {
		fmt.Fprintln(env.stdout, "no settings file in use (configured from environment)")
		return nil
	}
	fmt.Fprintln(env.stdout, env.cfg.Path)
	return nil
}
