package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Регистрируем драйвер SQLite.
	// Register the SQLite driver.
	_ "modernc.org/sqlite"

	"migledger/pkg/migledger"
)

// Gateway реализует журнал миграций для SQLite.
// Gateway implements the migration ledger for SQLite.
type Gateway struct {
	db *sql.DB
}

// Open открывает файл БД, создавая каталог при необходимости.
// Вход: ctx, path к файлу БД (или ":memory:").
// Выход: *Gateway или error.
// Назначение: подключение для выполнения миграций.
// Open opens the database file, creating its directory when missing.
// Input: ctx, path to the database file (or ":memory:").
// Output: *Gateway or error.
// Purpose: connection for running migrations.
func Open(ctx context.Context, path string) (*Gateway, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Одно соединение: ":memory:" живёт только внутри него.
	// A single connection: ":memory:" only lives inside it.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New оборачивает уже открытое соединение.
// New wraps an already open connection.
func New(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

// Name возвращает имя драйвера.
// Name returns the driver name.
func (g *Gateway) Name() string {
	return "sqlite"
}

// DB возвращает соединение для программируемых миграций.
// DB returns the connection for programmable migrations.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// TableExists проверяет наличие таблицы журнала в sqlite_master.
// Вход: ctx.
// Выход: true при наличии таблицы или error.
// Назначение: отличить «нужен setup» от пустого журнала.
// TableExists checks sqlite_master for the ledger table.
// Input: ctx.
// Output: true when the table exists, or an error.
// Purpose: tell "setup needed" apart from an empty ledger.
func (g *Gateway) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := g.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`,
		migledger.LedgerTable,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s table: %w", migledger.LedgerTable, err)
	}
	return exists, nil
}

// CreateTable создаёт таблицу журнала.
// CreateTable creates the ledger table.
func (g *Gateway) CreateTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + migledger.LedgerTable + ` (tag TEXT UNIQUE)`
	if _, err := g.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", migledger.LedgerTable, err)
	}
	return nil
}

// AppliedTags возвращает теги в порядке вставки (rowid).
// AppliedTags returns tags in insertion (rowid) order.
func (g *Gateway) AppliedTags(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT tag FROM `+migledger.LedgerTable+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", migledger.LedgerTable, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// InsertTag записывает факт применения миграции.
// InsertTag records an applied migration.
func (g *Gateway) InsertTag(ctx context.Context, tag string) error {
	_, err := g.db.ExecContext(ctx, `INSERT INTO `+migledger.LedgerTable+` (tag) VALUES (?)`, tag)
	if err != nil {
		return fmt.Errorf("insert %s: %w", migledger.LedgerTable, err)
	}
	return nil
}

// DeleteTag удаляет запись о миграции.
// DeleteTag removes a migration record.
func (g *Gateway) DeleteTag(ctx context.Context, tag string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM `+migledger.LedgerTable+` WHERE tag = ?`, tag)
	if err != nil {
		return fmt.Errorf("delete %s: %w", migledger.LedgerTable, err)
	}
	return nil
}

// ExecScript выполняет SQL миграции; пустой скрипт ничего не делает.
// ExecScript runs a migration's SQL; an empty script is a no-op.
func (g *Gateway) ExecScript(ctx context.Context, script migledger.Script) error {
	sqlText, err := migledger.ReadScript(script)
	if err != nil {
		return err
	}
	if sqlText == "" {
		return nil
	}
	if _, err := g.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("exec %s: %w", script, err)
	}
	return nil
}

// Close закрывает соединение.
// Close closes the connection.
func (g *Gateway) Close() error {
	return g.db.Close()
}
