package migledger

import (
	"errors"
	"fmt"
)

// Сентинельные ошибки для errors.Is.
// Sentinel errors for errors.Is.
var (
	// ErrTag — неверный или повторяющийся тег.
	// ErrTag is a malformed or duplicate tag.
	ErrTag = errors.New("tag error")
	// ErrMigrationNotFound — для тега или скрипта нет миграции.
	// ErrMigrationNotFound means a script or ledger tag has no matching migration.
	ErrMigrationNotFound = errors.New("migration not found")
	// ErrMigration — ошибка выполнения миграции или записи в журнал.
	// ErrMigration is an execution or ledger mutation failure.
	ErrMigration = errors.New("migration error")
	// ErrMigrationComplete — больше нет миграций в этом направлении.
	// ErrMigrationComplete signals there is nothing left in this direction.
	ErrMigrationComplete = errors.New("migration complete")
	// ErrPath — проблема с путями файловой системы.
	// ErrPath is a filesystem path problem.
	ErrPath = errors.New("path error")
	// ErrConfig — неверная конфигурация.
	// ErrConfig is an invalid configuration.
	ErrConfig = errors.New("config error")
)

// Error связывает вид ошибки с сообщением и причиной.
// Error ties an error kind to a message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// Error возвращает "вид: сообщение[: причина]".
// Error renders "kind: message[: cause]".
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is сравнивает с видом ошибки.
// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Unwrap возвращает причину.
// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsMigrationComplete сообщает, что ошибка — сигнал завершения.
// Вход: err любая ошибка.
// Выход: true, если err сигнализирует об отсутствии миграций.
// Назначение: отличать «всё применено» от реальных сбоев.
// IsMigrationComplete reports whether err is the completion sentinel.
// Input: any error.
// Output: true when err signals there is nothing left to apply.
// Purpose: tell "all done" apart from real failures.
func IsMigrationComplete(err error) bool {
	return errors.Is(err, ErrMigrationComplete)
}
