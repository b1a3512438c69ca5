package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Регистрируем драйверы Postgres: "pgx" и "postgres".
	// Register the Postgres drivers: "pgx" and "postgres".
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"migledger/pkg/migledger"
)

// Gateway реализует журнал миграций для Postgres через database/sql.
// Gateway implements the migration ledger for Postgres on database/sql.
type Gateway struct {
	db *sql.DB
}

// Open открывает подключение к Postgres.
// Вход: ctx, sqlDriver ("postgres" для lib/pq или "pgx"), строка DSN.
// Выход: *Gateway или error.
// Назначение: создать подключение для выполнения миграций.
// Open opens a Postgres connection.
// Input: ctx, sqlDriver ("postgres" for lib/pq or "pgx"), DSN string.
// Output: *Gateway or error.
// Purpose: create a connection for running migrations.
func Open(ctx context.Context, sqlDriver, dsn string) (*Gateway, error) {
	if sqlDriver == "" {
		sqlDriver = migledger.SQLDriverPQ
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}

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
	return "postgres"
}

// DB возвращает соединение для программируемых миграций.
// DB returns the connection for programmable migrations.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// TableExists проверяет таблицу журнала так же, как её найдут неквалифицированные запросы.
// Вход: ctx.
// Выход: true, если имя разрешается через search_path.
// Назначение: таблица с тем же именем в другой схеме не считается.
// TableExists checks the ledger table the way unqualified queries resolve it.
// Input: ctx.
// Output: true when the name resolves through the search_path.
// Purpose: a same-named table in another schema does not count.
func (g *Gateway) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := g.db.QueryRowContext(ctx,
		`SELECT to_regclass($1::text) IS NOT NULL`,
		migledger.LedgerTable,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s table: %w", migledger.LedgerTable, err)
	}
	return exists, nil
}

// CreateTable создаёт таблицу журнала.
// Вход: ctx для отмены.
// Выход: error при ошибке создания.
// Назначение: подготовить хранилище тегов.
// CreateTable creates the ledger table.
// Input: ctx for cancellation.
// Output: error on creation failure.
// Purpose: prepare tag storage.
func (g *Gateway) CreateTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + migledger.LedgerTable + ` (tag TEXT UNIQUE)`
	if _, err := g.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", migledger.LedgerTable, err)
	}
	return nil
}

// AppliedTags возвращает применённые теги.
// Вход: ctx для отмены.
// Выход: список тегов или error.
// Назначение: восстановить журнал при перезагрузке.
// AppliedTags returns the applied tags.
// Input: ctx for cancellation.
// Output: list of tags or error.
// Purpose: rebuild the ledger on reload.
func (g *Gateway) AppliedTags(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT tag FROM `+migledger.LedgerTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// InsertTag записывает факт применения миграции.
// InsertTag records an applied migration.
func (g *Gateway) InsertTag(ctx context.Context, tag string) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO `+migledger.LedgerTable+` (tag) VALUES ($1)`,
		tag,
	)
	return err
}

// DeleteTag удаляет запись о миграции.
// DeleteTag removes a migration record.
func (g *Gateway) DeleteTag(ctx context.Context, tag string) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM `+migledger.LedgerTable+` WHERE tag = $1`,
		tag,
	)
	return err
}

// ExecScript выполняет SQL миграции одним запросом.
// Без аргументов оба драйвера используют simple protocol, поэтому в скрипте может быть несколько операторов.
// ExecScript runs a migration's SQL as a single request.
// With no arguments both drivers use the simple protocol, so a script may hold several statements.
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
