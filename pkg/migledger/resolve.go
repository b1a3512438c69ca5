package migledger

// Next выбирает следующую миграцию для направления.
// Вход: dir направление, migrations в порядке источника, applied журнал.
// Выход: миграция; nil без ошибки, если больше нечего делать;
// ErrMigrationNotFound, если журнал ссылается на отсутствующую миграцию.
// Назначение: единственное место, где решается порядок apply/rollback.
// Next picks the next migration for a direction.
// Input: dir, migrations in source order, applied ledger.
// Output: a migration; nil with no error when nothing is left;
// ErrMigrationNotFound when the ledger references a missing migration.
// Purpose: the single place that decides apply/rollback order.
func Next(dir Direction, migrations []Migration, applied Ledger) (Migration, error) {
	switch dir {
	case DirectionUp:
		for _, m := range migrations {
			if !applied.Contains(m.Tag()) {
				return m, nil
			}
		}
		return nil, nil
	case DirectionDown:
		last, ok := applied.Last()
		if !ok {
			return nil, nil
		}
		for i := len(migrations) - 1; i >= 0; i-- {
			if migrations[i].Tag() == last {
				return migrations[i], nil
			}
		}
		return nil, newError(ErrMigrationNotFound, "applied migration %q has no matching migration", last)
	default:
		return nil, newError(ErrConfig, "unknown direction %q", dir)
	}
}
