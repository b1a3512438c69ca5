package migledger

import (
	"context"
	"slices"
)

// Ledger — неизменяемый снимок применённых тегов в порядке применения.
// Ledger is an immutable snapshot of applied tags in apply order.
type Ledger []string

// Contains сообщает, применён ли тег.
// Contains reports whether tag is applied.
func (l Ledger) Contains(tag string) bool {
	return slices.Contains(l, tag)
}

// Last возвращает последний применённый тег.
// Last returns the most recently applied tag.
func (l Ledger) Last() (string, bool) {
	if len(l) == 0 {
		return "", false
	}
	return l[len(l)-1], true
}

// loadLedger читает журнал из БД, проверяет и сортирует теги.
// Вход: ctx, шлюз, источник (для диалекта и порядка), валидатор.
// Выход: новый Ledger или ErrMigration.
// Назначение: журнал всегда восстанавливается целиком из БД.
func loadLedger(ctx context.Context, gw Gateway, src *Source, v *TagValidator) (Ledger, error) {
	exists, err := gw.TableExists(ctx)
	if err != nil {
		return nil, wrapError(ErrMigration, err, "check %s table", LedgerTable)
	}
	if !exists {
		return nil, newError(ErrMigration, "%s table is missing, run setup first", LedgerTable)
	}

	tags, err := gw.AppliedTags(ctx)
	if err != nil {
		return nil, wrapError(ErrMigration, err, "read applied tags")
	}

	dialect := src.Dialect()
	for _, tag := range tags {
		if err := v.Validate(tag, dialect); err != nil {
			return nil, wrapError(ErrMigration, err, "found a non-conforming tag in the database: %q", tag)
		}
	}

	ledger := append(Ledger(nil), tags...)
	slices.SortStableFunc(ledger, func(a, b string) int {
		return CompareTags(a, b, dialect, src.positions)
	})
	return ledger, nil
}
