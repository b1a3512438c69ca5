package migledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// LedgerTable это имя таблицы журнала применённых тегов.
// LedgerTable is the name of the applied-tag ledger table.
const LedgerTable = "__migledger_migrations"

// Gateway определяет операции журнала для конкретной БД.
// Назначение: абстрагировать различия между СУБД и способом выполнения (драйвер или CLI).
// Gateway defines database-specific ledger operations.
// Purpose: abstract differences between backends and execution modes (native driver or CLI).
type Gateway interface {
	Name() string
	TableExists(ctx context.Context) (bool, error)
	CreateTable(ctx context.Context) error
	AppliedTags(ctx context.Context) ([]string, error)
	InsertTag(ctx context.Context, tag string) error
	DeleteTag(ctx context.Context, tag string) error
	ExecScript(ctx context.Context, script Script) error
	Close() error
}

// DBProvider реализуют шлюзы с живым *sql.DB.
// Назначение: дать программируемым миграциям доступ к соединению.
// DBProvider is implemented by gateways that hold a live *sql.DB.
// Purpose: give programmable migrations access to the connection.
type DBProvider interface {
	DB() *sql.DB
}

// Script — источник SQL: путь к файлу или готовый текст.
// Script is a SQL source: either a file path or an inline statement.
type Script struct {
	Path      string
	Statement string
}

// IsZero сообщает, что скрипт не задан.
// IsZero reports that no script was given.
func (s Script) IsZero() bool {
	return s.Path == "" && s.Statement == ""
}

// String возвращает путь или метку встроенного текста.
// String returns the path or an inline-statement label.
func (s Script) String() string {
	if s.Path != "" {
		return s.Path
	}
	return "<inline statement>"
}

// ReadScript возвращает текст SQL без крайних пробелов.
// Вход: script.
// Выход: SQL (возможно пустой) или error при чтении файла.
// Назначение: общая логика чтения для нативных шлюзов.
// ReadScript returns the SQL text with surrounding whitespace trimmed.
// Input: script.
// Output: SQL (possibly empty) or an error reading the file.
// Purpose: shared reading logic for native gateways.
func ReadScript(script Script) (string, error) {
	if script.Path == "" {
		return strings.TrimSpace(script.Statement), nil
	}
	content, err := os.ReadFile(script.Path)
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", script.Path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
