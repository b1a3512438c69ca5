package migledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Migrator применяет миграции источника и ведёт журнал через Gateway.
// Назначение: execute → record → reload с поддержкой force/fake/all.
// Migrator applies a source's migrations and keeps the ledger through a Gateway.
// Purpose: execute → record → reload with force/fake/all support.
type Migrator struct {
	gateway   Gateway
	source    *Source
	validator *TagValidator
	logger    *slog.Logger
	out       io.Writer

	ledger Ledger
	loaded bool
}

// Option настраивает Migrator.
// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger задаёт логгер.
// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithOutput задаёт writer для строк прогресса ("Applying: ...").
// WithOutput sets the writer for progress lines ("Applying: ...").
func WithOutput(w io.Writer) Option {
	return func(m *Migrator) {
		if w != nil {
			m.out = w
		}
	}
}

// WithValidator задаёт валидатор тегов, иначе создаётся новый.
// WithValidator sets the tag validator; a new one is created otherwise.
func WithValidator(v *TagValidator) Option {
	return func(m *Migrator) {
		if v != nil {
			m.validator = v
		}
	}
}

// New создаёт Migrator.
// Вход: gw шлюз журнала, src источник миграций, опции.
// Выход: *Migrator; журнал загружается лениво или через Reload.
// Назначение: точка входа для CLI и встраивающего кода.
// New creates a Migrator.
// Input: gw ledger gateway, src migration source, options.
// Output: *Migrator; the ledger is loaded lazily or via Reload.
// Purpose: entry point for the CLI and embedding code.
func New(gw Gateway, src *Source, opts ...Option) *Migrator {
	m := &Migrator{
		gateway: gw,
		source:  src,
		logger:  slog.Default(),
		out:     io.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.validator == nil {
		m.validator = NewTagValidator()
	}
	return m
}

// StepResult описывает один шаг применения.
// StepResult describes a single apply step.
type StepResult struct {
	Tag         string
	Description string
	Direction   Direction
	// Empty — у миграции нет скрипта для этого направления.
	// Empty means the migration has nothing to run in this direction.
	Empty bool
	Fake  bool
	// Forced хранит ошибку выполнения, пропущенную из-за force.
	// Forced holds the execution error skipped because of force.
	Forced error
}

// Options — параметры Apply.
// Options are the Apply parameters.
type Options struct {
	Direction Direction
	Force     bool
	Fake      bool
	All       bool
}

// MigrationStatus — миграция источника и признак применения.
// MigrationStatus is a source migration and whether it is applied.
type MigrationStatus struct {
	Tag     string
	Applied bool
}

type stepState int

const (
	stepContinue stepState = iota
	stepComplete
	stepFailed
)

// Setup создаёт таблицу журнала, если её нет.
// Вход: ctx.
// Выход: true, если таблица создана; error при ошибке БД.
// Назначение: подготовить хранилище тегов.
// Setup creates the ledger table if it is missing.
// Input: ctx.
// Output: true if the table was created; error on database failure.
// Purpose: prepare tag storage.
func (m *Migrator) Setup(ctx context.Context) (bool, error) {
	exists, err := m.gateway.TableExists(ctx)
	if err != nil {
		return false, wrapError(ErrMigration, err, "check %s table", LedgerTable)
	}
	if exists {
		m.logger.Debug("ledger table exists", "table", LedgerTable, "gateway", m.gateway.Name())
		return false, nil
	}
	if err := m.gateway.CreateTable(ctx); err != nil {
		return false, wrapError(ErrMigration, err, "create %s table", LedgerTable)
	}
	m.logger.Info("ledger table created", "table", LedgerTable, "gateway", m.gateway.Name())
	return true, nil
}

// Reload заново читает журнал из БД и заменяет снимок целиком.
// Reload re-reads the ledger from the database and replaces the snapshot wholesale.
func (m *Migrator) Reload(ctx context.Context) error {
	ledger, err := loadLedger(ctx, m.gateway, m.source, m.validator)
	if err != nil {
		return err
	}
	m.ledger = ledger
	m.loaded = true
	return nil
}

// Applied возвращает текущий снимок журнала.
// Applied returns the current ledger snapshot.
func (m *Migrator) Applied() Ledger {
	return append(Ledger(nil), m.ledger...)
}

// ApplyOne применяет или откатывает одну миграцию.
// Вход: ctx, dir направление, force продолжать при ошибке выполнения, fake не выполнять SQL.
// Выход: результат шага; ErrMigrationComplete, если миграций больше нет;
// ErrMigration при ошибке выполнения (без force) или записи в журнал.
// Назначение: один шаг resolve → execute → record → reload.
// ApplyOne applies or reverts a single migration.
// Input: ctx, dir, force to continue past execution errors, fake to skip execution.
// Output: the step result; ErrMigrationComplete when nothing is left;
// ErrMigration on an unforced execution error or a ledger write failure.
// Purpose: one resolve → execute → record → reload step.
func (m *Migrator) ApplyOne(ctx context.Context, dir Direction, force, fake bool) (StepResult, error) {
	res, state, err := m.step(ctx, dir, force, fake)
	if state == stepComplete {
		return res, newError(ErrMigrationComplete, "no un-applied %s migration found", dir)
	}
	return res, err
}

// ApplyAll применяет шаги, пока они не закончатся или не произойдёт ошибка.
// Вход: те же параметры, что у ApplyOne.
// Выход: результаты выполненных шагов; nil, когда всё применено; первая ошибка иначе.
// Назначение: пакетное применение без отката уже выполненных шагов.
// ApplyAll runs steps until none are left or one fails.
// Input: the same parameters as ApplyOne.
// Output: results of the steps run; nil once complete; the first error otherwise.
// Purpose: batch apply with no rollback of steps already done.
func (m *Migrator) ApplyAll(ctx context.Context, dir Direction, force, fake bool) ([]StepResult, error) {
	var results []StepResult
	for {
		res, state, err := m.step(ctx, dir, force, fake)
		switch state {
		case stepComplete:
			return results, nil
		case stepFailed:
			return results, err
		}
		results = append(results, res)
	}
}

// Apply выполняет ApplyOne или ApplyAll по опциям.
// Apply runs ApplyOne or ApplyAll depending on opts.
func (m *Migrator) Apply(ctx context.Context, opts Options) ([]StepResult, error) {
	dir := opts.Direction
	if dir == "" {
		dir = DirectionUp
	}
	if opts.All {
		return m.ApplyAll(ctx, dir, opts.Force, opts.Fake)
	}
	res, err := m.ApplyOne(ctx, dir, opts.Force, opts.Fake)
	if err != nil {
		return nil, err
	}
	return []StepResult{res}, nil
}

// Redo откатывает и заново применяет миграции.
// Вход: ctx, all для всех миграций, force и fake как у Apply.
// Выход: результаты down, затем up; первая ошибка.
// Назначение: быстрый цикл разработки миграции.
// Redo reverts and re-applies migrations.
// Input: ctx, all for every migration, force and fake as in Apply.
// Output: down results followed by up results; the first error.
// Purpose: quick iteration while writing a migration.
func (m *Migrator) Redo(ctx context.Context, all, force, fake bool) ([]StepResult, error) {
	down, err := m.Apply(ctx, Options{Direction: DirectionDown, Force: force, Fake: fake, All: all})
	if err != nil {
		return down, err
	}
	up, err := m.Apply(ctx, Options{Direction: DirectionUp, Force: force, Fake: fake, All: all})
	return append(down, up...), err
}

// List возвращает миграции источника с признаком применения.
// Вход: ctx.
// Выход: статусы в порядке источника или error.
// Назначение: показать статус без выполнения миграций.
// List returns source migrations with their applied flag.
// Input: ctx.
// Output: statuses in source order or an error.
// Purpose: show status without running migrations.
func (m *Migrator) List(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	statuses := make([]MigrationStatus, 0, m.source.Len())
	for _, mig := range m.source.migrations {
		statuses = append(statuses, MigrationStatus{
			Tag:     mig.Tag(),
			Applied: m.ledger.Contains(mig.Tag()),
		})
	}
	return statuses, nil
}

func (m *Migrator) step(ctx context.Context, dir Direction, force, fake bool) (StepResult, stepState, error) {
	if !m.loaded {
		if err := m.Reload(ctx); err != nil {
			return StepResult{}, stepFailed, err
		}
	}

	next, err := Next(dir, m.source.migrations, m.ledger)
	if err != nil {
		return StepResult{}, stepFailed, err
	}
	if next == nil {
		return StepResult{}, stepComplete, nil
	}

	res := StepResult{
		Tag:         next.Tag(),
		Description: next.Description(dir),
		Direction:   dir,
		Fake:        fake,
	}
	fmt.Fprintf(m.out, "Applying: %s", res.Description)

	if fake {
		fmt.Fprintln(m.out, " ... ok (fake)")
	} else {
		empty, err := m.execute(ctx, next, dir)
		if err != nil {
			fmt.Fprintln(m.out)
			if !force {
				m.logger.Error("migration failed",
					"tag", res.Tag,
					"direction", dir,
					"error", err)
				return res, stepFailed, wrapError(ErrMigration, err, "migration %s was unsuccessful", res.Tag)
			}
			fmt.Fprintf(m.out, " ** Error ** (continuing because force was specified)\n ** %v\n", err)
			m.logger.Warn("migration failed, recording anyway because of force",
				"tag", res.Tag,
				"direction", dir,
				"error", err)
			res.Forced = err
		} else if empty {
			res.Empty = true
			fmt.Fprintln(m.out, " (empty) ... ok")
		} else {
			fmt.Fprintln(m.out, " ... ok")
		}
	}

	if err := m.record(ctx, dir, res.Tag); err != nil {
		return res, stepFailed, err
	}
	m.logger.Info("migration applied",
		"tag", res.Tag,
		"direction", dir,
		"fake", fake,
		"empty", res.Empty,
		"forced", res.Forced != nil)

	if err := m.Reload(ctx); err != nil {
		return res, stepFailed, err
	}
	return res, stepContinue, nil
}

func (m *Migrator) record(ctx context.Context, dir Direction, tag string) error {
	if dir == DirectionDown {
		if err := m.gateway.DeleteTag(ctx, tag); err != nil {
			return wrapError(ErrMigration, err, "delete tag %s", tag)
		}
		return nil
	}
	if err := m.gateway.InsertTag(ctx, tag); err != nil {
		return wrapError(ErrMigration, err, "insert tag %s", tag)
	}
	return nil
}

// execute запускает миграцию; empty=true, если для направления нет SQL или функции.
func (m *Migrator) execute(ctx context.Context, mig Migration, dir Direction) (bool, error) {
	switch mig := mig.(type) {
	case *FileMigration:
		return m.execScript(ctx, mig.script(dir))
	case *EmbeddedMigration:
		return m.execScript(ctx, mig.script(dir))
	case *FnMigration:
		fn := mig.callback(dir)
		if fn == nil {
			return true, nil
		}
		provider, ok := m.gateway.(DBProvider)
		if !ok {
			return false, newError(ErrConfig, "gateway %s has no database connection for programmable migration %s", m.gateway.Name(), mig.Tag())
		}
		return false, fn(ctx, provider.DB())
	default:
		return false, newError(ErrConfig, "unsupported migration type %T", mig)
	}
}

// execScript пропускает отсутствующие и пустые скрипты (например, заготовки от new).
// execScript skips absent and blank scripts (such as scaffolds from new).
func (m *Migrator) execScript(ctx context.Context, script Script) (bool, error) {
	if script.IsZero() {
		return true, nil
	}
	text, err := ReadScript(script)
	if err != nil {
		return false, err
	}
	if text == "" {
		return true, nil
	}
	return false, m.gateway.ExecScript(ctx, script)
}
