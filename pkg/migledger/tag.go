package migledger

import (
	"regexp"
	"strings"
	"time"
)

// StampLayout это формат временной метки в сгенерированных тегах.
// StampLayout is the timestamp layout of generated tags.
const StampLayout = "20060102150405"

// TagDialect определяет, какой формат тегов допустим.
// TagDialect selects the accepted tag format.
type TagDialect int

const (
	// DialectGenerated: "<14 цифр>_<имя>", теги из файловой системы.
	// DialectGenerated is "<14 digits>_<name>", used by discovered sources.
	DialectGenerated TagDialect = iota
	// DialectExplicit: только "<имя>", теги из кода.
	// DialectExplicit is "<name>" only, used by registered sources.
	DialectExplicit
)

// String возвращает "generated" или "explicit".
// String returns "generated" or "explicit".
func (d TagDialect) String() string {
	if d == DialectExplicit {
		return "explicit"
	}
	return "generated"
}

// TagValidator хранит скомпилированные регулярные выражения для тегов.
// Назначение: скомпилировать один раз и передавать явно, без глобального состояния.
// TagValidator holds the compiled tag patterns.
// Purpose: compile once and pass explicitly instead of keeping global state.
type TagValidator struct {
	name *regexp.Regexp
	full *regexp.Regexp
}

// NewTagValidator создаёт валидатор тегов.
// NewTagValidator creates a tag validator.
func NewTagValidator() *TagValidator {
	return &TagValidator{
		name: regexp.MustCompile(`^[a-z0-9-]+$`),
		full: regexp.MustCompile(`^[0-9]{14}_[a-z0-9-]+$`),
	}
}

// ValidName проверяет имя миграции без временной метки.
// Вход: name.
// Выход: ErrTag, если имя содержит символы вне [a-z0-9-].
// Назначение: проверка тегов из кода и имён новых миграций.
// ValidName checks a migration name without a stamp.
// Input: name.
// Output: ErrTag if the name has characters outside [a-z0-9-].
// Purpose: validate explicit tags and names of new migrations.
func (v *TagValidator) ValidName(name string) error {
	if !v.name.MatchString(name) {
		return newError(ErrTag, "invalid tag %q, tags can contain [a-z0-9-]", name)
	}
	return nil
}

// Validate проверяет тег по диалекту.
// Вход: tag и dialect.
// Выход: ErrTag при несоответствии.
// Назначение: общая проверка для источников и журнала.
// Validate checks a tag against a dialect.
// Input: tag and dialect.
// Output: ErrTag on mismatch.
// Purpose: shared check for sources and the ledger.
func (v *TagValidator) Validate(tag string, dialect TagDialect) error {
	switch dialect {
	case DialectExplicit:
		return v.ValidName(tag)
	default:
		if !v.full.MatchString(tag) {
			return newError(ErrTag, "invalid tag %q, expected <YYYYMMDDHHMMSS>_<name>", tag)
		}
		if _, _, err := ParseTag(tag); err != nil {
			return err
		}
		return nil
	}
}

// ParseTag разбирает сгенерированный тег на метку времени и имя.
// Вход: tag формата "<stamp>_<name>".
// Выход: время (UTC), имя или ErrTag.
// Назначение: сортировка по времени и разбор имён каталогов.
// ParseTag splits a generated tag into its stamp and name.
// Input: tag in "<stamp>_<name>" form.
// Output: stamp (UTC), name, or ErrTag.
// Purpose: chronological ordering and directory name parsing.
func ParseTag(tag string) (time.Time, string, error) {
	stamp, name, ok := strings.Cut(tag, "_")
	if !ok || name == "" {
		return time.Time{}, "", newError(ErrTag, "tag %q is missing a <stamp>_ prefix", tag)
	}
	if len(stamp) != len(StampLayout) {
		return time.Time{}, "", newError(ErrTag, "tag %q has a malformed stamp %q", tag, stamp)
	}
	t, err := time.ParseInLocation(StampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, "", wrapError(ErrTag, err, "tag %q has an unparsable stamp", tag)
	}
	return t, name, nil
}

// CompareTags упорядочивает два тега.
// Вход: a, b, диалект и порядок регистрации (для explicit).
// Выход: -1, 0 или 1.
// Назначение: generated сравниваются по времени, explicit — по позиции регистрации.
// CompareTags orders two tags.
// Input: a, b, the dialect and the registration order (explicit only).
// Output: -1, 0 or 1.
// Purpose: generated tags compare by stamp, explicit tags by registration position.
func CompareTags(a, b string, dialect TagDialect, order map[string]int) int {
	if dialect == DialectExplicit {
		pa, oka := order[a]
		pb, okb := order[b]
		switch {
		case oka && okb:
			return compareInt(pa, pb)
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	}

	ta, _, erra := ParseTag(a)
	tb, _, errb := ParseTag(b)
	if erra == nil && errb == nil {
		if c := ta.Compare(tb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
