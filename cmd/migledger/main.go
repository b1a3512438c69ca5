package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"migledger/pkg/migledger"
	"migledger/pkg/migledger/drivers"
)

// version содержит текущую версию CLI.
// Назначение: показывать версию в команде version.
// version holds the current CLI version.
// Purpose: print version in the version command.
var version = "0.2.0"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// main разбирает подкоманду и завершает процесс с её кодом.
// main dispatches the subcommand and exits with its code.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run выполняет CLI.
// Вход: args (аргументы без имени бинарника), stdout, stderr.
// Выход: код завершения процесса.
// Назначение: вынести логику из main для тестов.
// run executes the CLI.
// Input: args (arguments without binary name), stdout, stderr.
// Output: process exit code.
// Purpose: keep main logic testable.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printHelp(stdout)
		return exitUsage
	}

	switch args[0] {
	case "help", "-h", "--help":
		printHelp(stdout)
		return exitOK
	case "version", "-v", "--version":
		fmt.Fprintln(stdout, version)
		return exitOK
	}

	fs := flag.NewFlagSet("migledger "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := commonFlags(fs)

	var cmd func(ctx context.Context, env *cliEnv) error
	switch args[0] {
	case "setup":
		cmd = runSetup
	case "list":
		cmd = runList
	case "apply":
		down := fs.Bool("down", false, "apply down.sql migrations")
		all := fs.Bool("all", false, "apply all available migrations")
		force := fs.Bool("force", false, "record the migration even if it fails")
		fake := fs.Bool("fake", false, "record the migration without running it")
		cmd = func(ctx context.Context, env *cliEnv) error {
			dir := migledger.DirectionUp
			if *down {
				dir = migledger.DirectionDown
			}
			return runApply(ctx, env, migledger.Options{Direction: dir, All: *all, Force: *force, Fake: *fake})
		}
	case "redo":
		all := fs.Bool("all", false, "redo all applied migrations")
		force := fs.Bool("force", false, "record the migrations even if they fail")
		fake := fs.Bool("fake", false, "record the migrations without running them")
		cmd = func(ctx context.Context, env *cliEnv) error {
			return runRedo(ctx, env, *all, *force, *fake)
		}
	case "new":
		cmd = runNew
	case "connect-string":
		cmd = runConnectString
	case "shell":
		cmd = runShell
	case "which-config":
		cmd = runWhichConfig
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printHelp(stderr)
		return exitUsage
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	env, err := buildEnv(opts, fs.Args(), stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, errorText(err))
		return exitError
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := cmd(ctx, env); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err.Error())
			return exitUsage
		}
		fmt.Fprintln(stderr, errorText(err))
		return exitError
	}
	return exitOK
}

// flags хранит значения общих флагов до финальной сборки.
// flags holds common flag values before final resolution.
type flags struct {
	configPath    string
	migrationsDir string
	dsn           string
	timeout       time.Duration
	verbose       bool
	noColor       bool
}

// commonFlags регистрирует флаги конфигурации и возвращает структуру.
// Вход: FlagSet для регистрации флагов.
// Выход: указатель на flags.
// Назначение: централизовать объявление флагов.
// commonFlags registers configuration flags and returns the struct.
// Input: FlagSet to register flags on.
// Output: pointer to flags.
// Purpose: centralize flag definitions.
func commonFlags(fs *flag.FlagSet) *flags {
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "path to "+migledger.ConfigFile+" (searched in parent directories by default)")
	fs.StringVar(&f.migrationsDir, "dir", "", "directory with migration folders (overrides migration_location)")
	fs.StringVar(&f.dsn, "dsn", "", "database connection string, or file path for sqlite")
	fs.DurationVar(&f.timeout, "timeout", 5*time.Minute, "overall command timeout")
	fs.BoolVar(&f.verbose, "verbose", false, "debug logging on stderr")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	return f
}

// pickEnv возвращает env значение или fallback.
// Вход: имя переменной и fallback.
// Выход: строка.
// Назначение: единый приоритет env над флагами.
// pickEnv returns env value or fallback.
// Input: variable name and fallback.
// Output: string.
// Purpose: unify env-over-flags priority.
func pickEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// loadConfig собирает конфигурацию из файла, env и флагов.
// Вход: f флаги.
// Выход: итоговый migledger.Config или error.
// Назначение: приоритет env > флаги > файл настроек.
// loadConfig builds the configuration from the file, env and flags.
// Input: f flags.
// Output: resolved migledger.Config or error.
// Purpose: env > flags > settings file priority.
func loadConfig(f *flags) (migledger.Config, error) {
	var cfg migledger.Config

	path := pickEnv("MIGLEDGER_CONFIG", f.configPath)
	dbType := os.Getenv("MIGLEDGER_DATABASE_TYPE")
	if path == "" {
		found, err := migledger.SearchConfig(".")
		switch {
		case err == nil:
			path = found
		case dbType == "":
			return cfg, err
		}
	}

	if path != "" {
		loaded, err := migledger.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if dbType != "" {
		cfg.Settings.DatabaseType = dbType
	}
	if executor := os.Getenv("MIGLEDGER_EXECUTOR"); executor != "" {
		cfg.Settings.Executor = executor
	}
	cfg.DSN = pickEnv("MIGLEDGER_DSN", f.dsn)
	cfg.MigrationsDir = pickEnv("MIGLEDGER_MIGRATIONS_DIR", f.migrationsDir)
	cfg.ApplyDefaults()

	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// errorText форматирует ошибку для терминала.
// errorText renders an error for the terminal.
func errorText(err error) string {
	return red("[ERROR] ") + strings.TrimSpace(err.Error())
}

// printHelp печатает справку по CLI.
// Вход: w куда печатать.
// Выход: help текст.
// Назначение: показать документацию команд и флагов.
// printHelp prints CLI help.
// Input: w to print to.
// Output: help text.
// Purpose: show command and flag documentation.
func printHelp(w io.Writer) {
	fmt.Fprint(w, `migledger: tag-ledger migrations for Postgres and SQLite

Usage:
  migledger <command> [flags] [args]

Commands:
  setup           create the ledger table
  list            show available migrations and whether they are applied
  apply           apply the next up migration (-down to revert, -all for every one)
  redo            revert and re-apply the latest migration (-all for every one)
  new <tag>       create <stamp>_<tag>/up.sql and down.sql
  connect-string  print the postgres connection string or the sqlite file path
  shell           open psql or sqlite3 on the configured database
  which-config    print the settings file in use
  version         print the version
  help            print this help

Flags:
  -config     path to .migledger.toml (searched in parent directories)
  -dir        migrations directory (overrides migration_location)
  -dsn        connection string / sqlite file path
  -timeout    overall command timeout
  -verbose    debug logging
  -no-color   disable colors
  apply:      -down -all -force -fake
  redo:       -all -force -fake

Environment:
  MIGLEDGER_CONFIG
  MIGLEDGER_DSN
  MIGLEDGER_DATABASE_TYPE
  MIGLEDGER_MIGRATIONS_DIR
  MIGLEDGER_EXECUTOR
  NO_COLOR

Examples:
  migledger setup
  migledger new create-users
  migledger apply -all
  migledger apply -down
  migledger list
`)
}

// cliEnv — всё, что нужно подкоманде.
// cliEnv is everything a subcommand needs.
type cliEnv struct {
	cfg    migledger.Config
	args   []string
	stdout io.Writer
	logger *slog.Logger
	v      *migledger.TagValidator
}

func buildEnv(f *flags, args []string, stdout, stderr io.Writer) (*cliEnv, error) {
	configureColors(f.noColor)
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	return &cliEnv{
		cfg:    cfg,
		args:   args,
		stdout: stdout,
		logger: newLogger(stderr, f.verbose),
		v:      migledger.NewTagValidator(),
	}, nil
}

// open открывает шлюз и строит Migrator по обнаруженным миграциям.
// open opens the gateway and builds a Migrator over the discovered migrations.
func (e *cliEnv) open(ctx context.Context, discover bool) (*migledger.Migrator, func(), error) {
	src, err := migledger.Register(e.v)
	if discover {
		src, err = migledger.Discover(e.cfg.MigrationDir(), e.v)
	}
	if err != nil {
		return nil, nil, err
	}

	gw, err := drivers.Open(ctx, e.cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := gw.Close(); err != nil {
			e.logger.Warn("close gateway", "error", err)
		}
	}

	m := migledger.New(gw, src,
		migledger.WithLogger(e.logger),
		migledger.WithOutput(e.stdout),
		migledger.WithValidator(e.v),
	)
	return m, closeFn, nil
}
