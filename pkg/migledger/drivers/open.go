// Package drivers выбирает реализацию Gateway по настройкам.
// Package drivers selects a Gateway implementation from settings.
package drivers

import (
	"context"
	"fmt"

	"migledger/pkg/migledger"
	"migledger/pkg/migledger/drivers/postgres"
	"migledger/pkg/migledger/drivers/shell"
	"migledger/pkg/migledger/drivers/sqlite"
)

// Open открывает шлюз для типа БД и исполнителя из cfg.
// Вход: ctx, cfg с database_type, executor и sql_driver.
// Выход: Gateway или error.
// Назначение: движок не знает, какой шлюз активен.
// Open opens the gateway for cfg's database type and executor.
// Input: ctx, cfg with database_type, executor and sql_driver.
// Output: Gateway or error.
// Purpose: the engine never knows which gateway is active.
func Open(ctx context.Context, cfg migledger.Config) (migledger.Gateway, error) {
	s := cfg.Settings
	switch s.DatabaseType {
	case migledger.DatabasePostgres:
		dsn, err := cfg.ConnectString()
		if err != nil {
			return nil, err
		}
		if s.Executor == migledger.ExecutorShell {
			return shell.NewPostgres(dsn), nil
		}
		gw, err := postgres.Open(ctx, s.SQLDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return gw, nil
	case migledger.DatabaseSQLite:
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, err
		}
		if s.Executor == migledger.ExecutorShell {
			return shell.NewSQLite(path), nil
		}
		gw, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return gw, nil
	default:
		return nil, &migledger.Error{Kind: migledger.ErrConfig, Msg: fmt.Sprintf("unsupported database type: %q", s.DatabaseType)}
	}
}
