package migledger

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Source — упорядоченный набор миграций с уникальными тегами.
// Назначение: единый вход для resolve/apply в режимах discovered и explicit.
// Source is an ordered set of migrations with unique tags.
// Purpose: a single input for resolve/apply in discovered and explicit modes.
type Source struct {
	migrations []Migration
	positions  map[string]int
	explicit   bool
}

// Register строит явный источник из миграций в заданном порядке.
// Вход: v валидатор, migrations в порядке применения.
// Выход: *Source или ErrTag при неверном либо повторном теге.
// Назначение: миграции, заданные программой (embedded/programmable/file).
// Register builds an explicit source keeping the caller's order.
// Input: v validator, migrations in apply order.
// Output: *Source or ErrTag on an invalid or duplicate tag.
// Purpose: migrations defined by the embedding program.
func Register(v *TagValidator, migrations ...Migration) (*Source, error) {
	src, err := newSource(migrations)
	if err != nil {
		return nil, err
	}
	for _, m := range migrations {
		if err := v.Validate(m.Tag(), DialectExplicit); err != nil {
			return nil, err
		}
	}
	src.explicit = true
	return src, nil
}

func newSource(migrations []Migration) (*Source, error) {
	positions := make(map[string]int, len(migrations))
	for i, m := range migrations {
		if m == nil {
			return nil, newError(ErrTag, "migration #%d is nil", i)
		}
		tag := m.Tag()
		if _, dup := positions[tag]; dup {
			return nil, newError(ErrTag, "duplicate migration tag %q", tag)
		}
		positions[tag] = i
	}
	return &Source{
		migrations: append([]Migration(nil), migrations...),
		positions:  positions,
	}, nil
}

// Discover ищет миграции в каталоге и сортирует их по времени.
// Вход: root — корень миграций вида <root>/<stamp>_<name>/{up,down}.sql.
// Выход: *Source или ошибка (ErrPath, ErrMigrationNotFound, ErrTag).
// Назначение: получить детерминированный список для apply/rollback.
// Discover scans a directory tree for migrations sorted by stamp.
// Input: root laid out as <root>/<stamp>_<name>/{up,down}.sql.
// Output: *Source or an error (ErrPath, ErrMigrationNotFound, ErrTag).
// Purpose: produce a deterministic list for apply/rollback.
func Discover(root string, v *TagValidator) (*Source, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, wrapError(ErrPath, err, "migration directory %s", root)
	}

	groups := map[string]map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		dir := filepath.Dir(path)
		if groups[dir] == nil {
			groups[dir] = map[string]string{}
		}
		groups[dir][strings.TrimSuffix(d.Name(), ".sql")] = path
		return nil
	})
	if err != nil {
		return nil, wrapError(ErrPath, err, "walk migration directory %s", root)
	}

	migrations := make([]*FileMigration, 0, len(groups))
	for dir, files := range groups {
		up, ok := files["up"]
		if !ok {
			return nil, newError(ErrMigrationNotFound, "missing up.sql in %s", dir)
		}
		down, ok := files["down"]
		if !ok {
			return nil, newError(ErrMigrationNotFound, "missing down.sql in %s", dir)
		}

		stamp, name, err := ParseTag(filepath.Base(dir))
		if err != nil {
			return nil, err
		}
		if err := v.ValidName(name); err != nil {
			return nil, err
		}

		migrations = append(migrations, &FileMigration{
			Name:  name,
			Stamp: stamp,
			Up:    up,
			Down:  down,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		if !migrations[i].Stamp.Equal(migrations[j].Stamp) {
			return migrations[i].Stamp.Before(migrations[j].Stamp)
		}
		return migrations[i].Name < migrations[j].Name
	})

	units := make([]Migration, len(migrations))
	for i, m := range migrations {
		units[i] = m
	}
	return newSource(units)
}

// CreateMigration создаёт каталог новой миграции с пустыми up.sql и down.sql.
// Вход: root каталог миграций, name имя, now время для метки, v валидатор.
// Выход: путь к созданному каталогу или ошибка.
// Назначение: заготовка для режима discovered.
// CreateMigration creates a new migration directory with empty up.sql and down.sql.
// Input: root migrations directory, name, now for the stamp, v validator.
// Output: the created directory path or an error.
// Purpose: scaffold a migration for the discovered mode.
func CreateMigration(root, name string, now time.Time, v *TagValidator) (string, error) {
	if err := v.ValidName(name); err != nil {
		return "", err
	}

	dir := filepath.Join(root, now.UTC().Format(StampLayout)+"_"+name)
	if _, err := os.Stat(dir); err == nil {
		return "", newError(ErrPath, "migration directory already exists: %s", dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", wrapError(ErrPath, err, "stat %s", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", wrapError(ErrPath, err, "create %s", dir)
	}
	for _, file := range []string{"up.sql", "down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, file), nil, 0o644); err != nil {
			return "", wrapError(ErrPath, err, "create %s", file)
		}
	}
	return dir, nil
}

// Migrations возвращает копию списка миграций.
// Migrations returns a copy of the migration list.
func (s *Source) Migrations() []Migration {
	return append([]Migration(nil), s.migrations...)
}

// Len возвращает число миграций.
// Len returns the number of migrations.
func (s *Source) Len() int {
	return len(s.migrations)
}

// Explicit сообщает, что источник задан через Register.
// Explicit reports whether the source came from Register.
func (s *Source) Explicit() bool {
	return s.explicit
}

// Dialect возвращает диалект тегов, которым проверяется журнал.
// Dialect returns the tag dialect used to validate the ledger.
func (s *Source) Dialect() TagDialect {
	if s.explicit {
		return DialectExplicit
	}
	return DialectGenerated
}

// Position возвращает индекс миграции с тегом.
// Position returns the index of the migration with tag.
func (s *Source) Position(tag string) (int, bool) {
	i, ok := s.positions[tag]
	return i, ok
}
