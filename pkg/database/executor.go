package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

// Executor is the instrumented query surface shared by the pool, sessions and
// transactions. Queries are written with '?' placeholders and passed through
// Rebind so the same SQL runs on every supported driver.
type Executor interface {
	ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error
	WithTx(ctx context.Context, fn func(tx Executor) error) error
	Rebind(query string) string
	DriverName() string
}

type queryRunner interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

type executor struct {
	runner  queryRunner
	driver  string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	// begin is nil once inside a transaction.
	begin func(ctx context.Context) (*sqlx.Tx, error)
}

// DriverName returns the registered sql driver name
func (e *executor) DriverName() string {
	return e.driver
}

// Rebind converts '?' placeholders into the driver's bind style
func (e *executor) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(e.driver), query)
}

// ExecContext executes a command with context and metrics
func (e *executor) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		e.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())

		e.logger.Debug(ctx, "[DB_EXEC] Command executed", logging.Fields{
			"query_type":  queryType,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	result, err := e.runner.ExecContext(ctx, e.Rebind(query), args...)
	if err != nil {
		e.metrics.RecordDBError("exec_error")
		e.logger.Error(ctx, "[DB_EXEC_ERROR] Command failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return nil, err
	}

	return result, nil
}

// GetContext executes a query that returns a single row
func (e *executor) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		e.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := sqlx.GetContext(ctx, e.runner, dest, e.Rebind(query), args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		e.metrics.RecordDBError("get_error")
		e.logger.Error(ctx, "[DB_GET_ERROR] Get query failed", logging.Fields{
			"query_type": queryType,
		}, err)
	}

	return err
}

// SelectContext executes a query that returns multiple rows
func (e *executor) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		e.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := sqlx.SelectContext(ctx, e.runner, dest, e.Rebind(query), args...)
	if err != nil {
		e.metrics.RecordDBError("select_error")
		e.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return err
	}

	return nil
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic. Nested calls reuse the enclosing transaction.
func (e *executor) WithTx(ctx context.Context, fn func(tx Executor) error) (err error) {
	if e.begin == nil {
		return fn(e)
	}

	tx, err := e.begin(ctx)
	if err != nil {
		e.metrics.RecordDBError("transaction_begin_error")
		e.logger.Error(ctx, "[DB_TX_ERROR] Failed to begin transaction", logging.Fields{}, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	inner := &executor{
		runner:  tx,
		driver:  e.driver,
		logger:  e.logger,
		metrics: e.metrics,
	}
	if err = fn(inner); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		e.metrics.RecordDBError("transaction_commit_error")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
