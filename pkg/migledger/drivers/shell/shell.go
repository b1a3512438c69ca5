// Package shell реализует журнал миграций через клиенты psql и sqlite3.
// Package shell implements the migration ledger by running the psql and sqlite3 clients.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"migledger/pkg/migledger"
)

// Имена клиентов по умолчанию.
// Default client binaries.
const (
	PostgresClient = "psql"
	SQLiteClient   = "sqlite3"
)

// CommandRunner запускает внешнюю команду и возвращает stdout.
// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Gateway выполняет SQL через CLI клиента БД.
// Клиенты не принимают параметры, поэтому теги проверяются перед подстановкой.
// Gateway runs SQL through the database's CLI client.
// The clients take no bind parameters, so tags are checked before interpolation.
type Gateway struct {
	kind   string
	target string
	bin    string
	run    CommandRunner
	tagRe  *regexp.Regexp
}

// Option настраивает Gateway.
// Option configures a Gateway.
type Option func(*Gateway)

// WithBinary задаёт путь к клиенту (psql/sqlite3).
// WithBinary sets the client binary (psql/sqlite3).
func WithBinary(bin string) Option {
	return func(g *Gateway) {
		if bin != "" {
			g.bin = bin
		}
	}
}

// WithRunner подменяет запуск команд (для тестов).
// WithRunner replaces command execution (for tests).
func WithRunner(run CommandRunner) Option {
	return func(g *Gateway) {
		if run != nil {
			g.run = run
		}
	}
}

// NewPostgres создаёт шлюз через psql.
// Вход: connStr строка подключения, опции.
// Выход: *Gateway.
// Назначение: работа без нативного драйвера.
// NewPostgres creates a gateway backed by psql.
// Input: connStr connection string, options.
// Output: *Gateway.
// Purpose: operate without a native driver.
func NewPostgres(connStr string, opts ...Option) *Gateway {
	return newGateway(migledger.DatabasePostgres, connStr, PostgresClient, opts)
}

// NewSQLite создаёт шлюз через sqlite3.
// NewSQLite creates a gateway backed by sqlite3.
func NewSQLite(dbPath string, opts ...Option) *Gateway {
	return newGateway(migledger.DatabaseSQLite, dbPath, SQLiteClient, opts)
}

func newGateway(kind, target, bin string, opts []Option) *Gateway {
	g := &Gateway{
		kind:   kind,
		target: target,
		bin:    bin,
		run:    runCommand,
		tagRe:  regexp.MustCompile(`^[a-z0-9_-]+$`),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name возвращает тип БД и клиент.
// Name returns the database type and the client.
func (g *Gateway) Name() string {
	return g.kind + " (" + g.bin + ")"
}

// TableExists проверяет таблицу журнала, видимую по search_path (Postgres).
// Вход: ctx.
// Выход: true при наличии таблицы; ошибка клиента.
// Назначение: отличить «нужен setup» от пустого журнала.
// TableExists checks for the ledger table visible on the search_path (Postgres).
// Input: ctx.
// Output: true when the table exists; a client error.
// Purpose: tell "setup needed" apart from an empty ledger.
func (g *Gateway) TableExists(ctx context.Context) (bool, error) {
	var query string
	if g.kind == migledger.DatabasePostgres {
		query = fmt.Sprintf("SELECT to_regclass('%s') IS NOT NULL;", migledger.LedgerTable)
	} else {
		query = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = '%s');", migledger.LedgerTable)
	}
	out, err := g.query(ctx, query)
	if err != nil {
		return false, err
	}
	out = strings.TrimSpace(out)
	return out == "t" || out == "1", nil
}

// CreateTable создаёт таблицу журнала.
// CreateTable creates the ledger table.
func (g *Gateway) CreateTable(ctx context.Context) error {
	_, err := g.query(ctx, "CREATE TABLE IF NOT EXISTS "+migledger.LedgerTable+" (tag TEXT UNIQUE);")
	return err
}

// AppliedTags читает теги, по одному на строку вывода.
// AppliedTags reads the tags, one per output line.
func (g *Gateway) AppliedTags(ctx context.Context) ([]string, error) {
	query := "SELECT tag FROM " + migledger.LedgerTable + ";"
	if g.kind == migledger.DatabaseSQLite {
		query = "SELECT tag FROM " + migledger.LedgerTable + " ORDER BY rowid;"
	}
	out, err := g.query(ctx, query)
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// InsertTag записывает тег после проверки символов.
// Вход: ctx, tag.
// Выход: ошибка при недопустимом теге или сбое клиента.
// Назначение: запись факта применения без параметров запроса.
// InsertTag records a tag after checking its characters.
// Input: ctx, tag.
// Output: error on an unsafe tag or a client failure.
// Purpose: record an applied migration without bind parameters.
func (g *Gateway) InsertTag(ctx context.Context, tag string) error {
	if err := g.checkTag(tag); err != nil {
		return err
	}
	_, err := g.query(ctx, fmt.Sprintf("INSERT INTO %s (tag) VALUES ('%s');", migledger.LedgerTable, tag))
	return err
}

// DeleteTag удаляет тег после проверки символов.
// DeleteTag removes a tag after checking its characters.
func (g *Gateway) DeleteTag(ctx context.Context, tag string) error {
	if err := g.checkTag(tag); err != nil {
		return err
	}
	_, err := g.query(ctx, fmt.Sprintf("DELETE FROM %s WHERE tag = '%s';", migledger.LedgerTable, tag))
	return err
}

// ExecScript передаёт файл клиенту целиком (-f / .read) или выполняет текст.
// ExecScript hands a file to the client (-f / .read) or runs the inline text.
func (g *Gateway) ExecScript(ctx context.Context, script migledger.Script) error {
	sqlText, err := migledger.ReadScript(script)
	if err != nil {
		return err
	}
	if sqlText == "" {
		return nil
	}
	if script.Path == "" {
		_, err := g.query(ctx, sqlText)
		return err
	}

	var args []string
	if g.kind == migledger.DatabasePostgres {
		args = []string{g.target, "-X", "-q", "-v", "ON_ERROR_STOP=1", "-f", script.Path}
	} else {
		args = []string{"-bail", g.target, dotRead(script.Path)}
	}
	_, err = g.run(ctx, g.bin, args...)
	return err
}

// Close ничего не делает: соединения живут только внутри клиента.
// Close is a no-op: connections only live inside the client.
func (g *Gateway) Close() error {
	return nil
}

func (g *Gateway) query(ctx context.Context, sqlText string) (string, error) {
	var args []string
	if g.kind == migledger.DatabasePostgres {
		// -t без заголовков, -A без выравнивания.
		// -t no headers, -A unaligned.
		args = []string{g.target, "-X", "-q", "-v", "ON_ERROR_STOP=1", "-t", "-A", "-c", sqlText}
	} else {
		args = []string{"-bail", "-csv", g.target, sqlText}
	}
	return g.run(ctx, g.bin, args...)
}

// dotRead строит ".read" с путём в двойных кавычках; sqlite3 делит аргументы по пробелам
// и раскрывает \\ и \" внутри двойных кавычек.
// dotRead builds a ".read" with a double-quoted path; sqlite3 splits arguments on spaces
// and resolves \\ and \" inside double quotes.
func dotRead(path string) string {
	return `.read "` + pathEscaper.Replace(path) + `"`
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func (g *Gateway) checkTag(tag string) error {
	if !g.tagRe.MatchString(tag) {
		return fmt.Errorf("refusing to write unsafe tag %q", tag)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // binary comes from settings, not user SQL
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%s failed: %s: %w", name, msg, err)
	}
	return stdout.String(), nil
}
