package migledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"
)

// Direction это направление миграции.
// Direction is a migration direction.
type Direction string

const (
	// DirectionUp это миграция вверх.
	// DirectionUp is the "up" migration direction.
	DirectionUp Direction = "up"
	// DirectionDown это миграция вниз.
	// DirectionDown is the "down" migration direction.
	DirectionDown Direction = "down"
)

// String возвращает "up" или "down".
// String returns "up" or "down".
func (d Direction) String() string {
	return string(d)
}

// Migration — одна обратимая миграция.
// Набор реализаций закрыт: FileMigration, EmbeddedMigration, FnMigration.
// Migration is a single reversible change.
// The set of implementations is closed: FileMigration, EmbeddedMigration, FnMigration.
type Migration interface {
	// Tag возвращает канонический идентификатор.
	// Tag returns the canonical identifier.
	Tag() string
	// Description возвращает подпись для вывода.
	// Description returns a human-readable label.
	Description(dir Direction) string

	migration()
}

// FileMigration описывает миграцию из файлов up/down.
// Назначение: хранить пути к SQL, которые читаются при выполнении.
// FileMigration describes a migration backed by up/down files.
// Purpose: hold SQL file paths that are read at run time.
type FileMigration struct {
	Name  string
	Stamp time.Time
	Up    string
	Down  string
}

// NewFileMigration создаёт файловую миграцию с явным тегом.
// Вход: v валидатор, tag имя.
// Выход: *FileMigration или ErrTag.
// Назначение: регистрация файловых миграций из кода.
// NewFileMigration creates a file-backed migration with an explicit tag.
// Input: v validator, tag name.
// Output: *FileMigration or ErrTag.
// Purpose: register file migrations from code.
func NewFileMigration(v *TagValidator, tag string) (*FileMigration, error) {
	if err := v.ValidName(tag); err != nil {
		return nil, err
	}
	return &FileMigration{Name: tag}, nil
}

// WithUp задаёт файл up. Файл должен существовать.
// WithUp sets the up file. The file must exist.
func (m *FileMigration) WithUp(path string) (*FileMigration, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	m.Up = path
	return m, nil
}

// WithDown задаёт файл down. Файл должен существовать.
// WithDown sets the down file. The file must exist.
func (m *FileMigration) WithDown(path string) (*FileMigration, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	m.Down = path
	return m, nil
}

func checkPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return wrapError(ErrMigrationNotFound, err, "migration file not found: %s", path)
	}
	return nil
}

// Tag возвращает "<stamp>_<name>" при заданной метке, иначе имя.
// Tag returns "<stamp>_<name>" when a stamp is set, otherwise the name.
func (m *FileMigration) Tag() string {
	if m.Stamp.IsZero() {
		return m.Name
	}
	return m.Stamp.UTC().Format(StampLayout) + "_" + m.Name
}

// Description предпочитает путь к файлу.
// Description prefers the file path.
func (m *FileMigration) Description(dir Direction) string {
	path := m.Up
	if dir == DirectionDown {
		path = m.Down
	}
	if path == "" {
		return m.Tag()
	}
	return fmt.Sprintf("%q", path)
}

func (m *FileMigration) script(dir Direction) Script {
	if dir == DirectionDown {
		return Script{Path: m.Down}
	}
	return Script{Path: m.Up}
}

func (*FileMigration) migration() {}

// EmbeddedMigration хранит SQL внутри бинарника (например, через go:embed).
// EmbeddedMigration keeps SQL inside the binary (e.g. via go:embed).
type EmbeddedMigration struct {
	Name string
	Up   string
	Down string
}

// NewEmbeddedMigration создаёт встроенную миграцию.
// Вход: v валидатор, tag имя.
// Выход: *EmbeddedMigration или ErrTag.
// Назначение: миграции без файлов во время выполнения.
// NewEmbeddedMigration creates an embedded migration.
// Input: v validator, tag name.
// Output: *EmbeddedMigration or ErrTag.
// Purpose: migrations with no files needed at run time.
func NewEmbeddedMigration(v *TagValidator, tag string) (*EmbeddedMigration, error) {
	if err := v.ValidName(tag); err != nil {
		return nil, err
	}
	return &EmbeddedMigration{Name: tag}, nil
}

// WithUp задаёт SQL для up.
// WithUp sets the up statement.
func (m *EmbeddedMigration) WithUp(stmt string) *EmbeddedMigration {
	m.Up = stmt
	return m
}

// WithDown задаёт SQL для down.
// WithDown sets the down statement.
func (m *EmbeddedMigration) WithDown(stmt string) *EmbeddedMigration {
	m.Down = stmt
	return m
}

// Tag возвращает имя миграции.
// Tag returns the migration name.
func (m *EmbeddedMigration) Tag() string {
	return m.Name
}

// Description возвращает тег: у встроенного SQL нет пути.
// Description returns the tag: embedded SQL has no path.
func (m *EmbeddedMigration) Description(Direction) string {
	return m.Name
}

func (m *EmbeddedMigration) script(dir Direction) Script {
	if dir == DirectionDown {
		return Script{Statement: m.Down}
	}
	return Script{Statement: m.Up}
}

func (*EmbeddedMigration) migration() {}

// MigrationFunc выполняет программную миграцию на живом соединении.
// MigrationFunc runs a programmable migration on a live connection.
type MigrationFunc func(ctx context.Context, db *sql.DB) error

// FnMigration — программируемая миграция для логики, которую нельзя выразить SQL.
// FnMigration is a programmable migration for logic that static SQL cannot express.
type FnMigration struct {
	Name string
	Up   MigrationFunc
	Down MigrationFunc
}

// NewFnMigration создаёт программируемую миграцию.
// NewFnMigration creates a programmable migration.
func NewFnMigration(v *TagValidator, tag string) (*FnMigration, error) {
	if err := v.ValidName(tag); err != nil {
		return nil, err
	}
	return &FnMigration{Name: tag}, nil
}

// WithUp задаёт функцию up.
// WithUp sets the up callback.
func (m *FnMigration) WithUp(fn MigrationFunc) *FnMigration {
	m.Up = fn
	return m
}

// WithDown задаёт функцию down.
// WithDown sets the down callback.
func (m *FnMigration) WithDown(fn MigrationFunc) *FnMigration {
	m.Down = fn
	return m
}

// Tag возвращает имя миграции.
// Tag returns the migration name.
func (m *FnMigration) Tag() string {
	return m.Name
}

// Description возвращает тег.
// Description returns the tag.
func (m *FnMigration) Description(Direction) string {
	return m.Name
}

func (m *FnMigration) callback(dir Direction) MigrationFunc {
	if dir == DirectionDown {
		return m.Down
	}
	return m.Up
}

func (*FnMigration) migration() {}
