// Package postgres runs the lakehouse models on a plain PostgreSQL database
// for local development. Statements execute synchronously inside Start and
// their outcome is kept in a bounded in-memory table so the asynchronous
// engine.Client contract still holds.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/engine"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultMaxExecutions = 256

// Config holds Postgres engine settings.
type Config struct {
	URL string
	// Schema plays the role of the Glue database.
	Schema        string
	MaxExecutions int
}

type execution struct {
	state    engine.State
	reason   string
	columns  []string
	rows     [][]string
	started  time.Time
	finished time.Time
}

// Engine implements engine.Client on a pgx pool.
type Engine struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu            sync.Mutex
	executions    map[string]*execution
	order         []string
	maxExecutions int
}

var _ engine.Client = (*Engine)(nil)

// Open connects, creates the schema and applies the embedded migrations.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres URL is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["search_path"] = pq.QuoteIdentifier(cfg.Schema)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(cfg.Schema)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema %s: %w", cfg.Schema, err)
	}
	if err := Migrate(cfg.URL, cfg.Schema); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres engine ready", zap.String("schema", cfg.Schema))
	return New(pool, cfg.MaxExecutions, logger), nil
}

// New wraps an existing pool. It does not run migrations.
func New(pool *pgxpool.Pool, maxExecutions int, logger *zap.Logger) *Engine {
	if maxExecutions <= 0 {
		maxExecutions = defaultMaxExecutions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		pool:          pool,
		logger:        logger,
		executions:    make(map[string]*execution),
		maxExecutions: maxExecutions,
	}
}

// Migrate applies the embedded migrations inside schema using the lib/pq
// database/sql driver.
func Migrate(databaseURL, schema string) error {
	db, err := sql.Open("postgres", withSearchPath(databaseURL, schema))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{SchemaName: schema})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// withSearchPath adds a search_path run-time parameter, which lib/pq passes
// through to the server.
func withSearchPath(databaseURL, schema string) string {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		u, err := url.Parse(databaseURL)
		if err == nil {
			q := u.Query()
			q.Set("search_path", pq.QuoteIdentifier(schema))
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return databaseURL + " search_path='" + strings.ReplaceAll(pq.QuoteIdentifier(schema), "'", `\'`) + "'"
}

// Close releases the pool.
func (e *Engine) Close() {
	e.pool.Close()
}

// Start runs the statement to completion and records its outcome. SQL errors
// become FAILED executions; only a cancelled context is returned as an error.
func (e *Engine) Start(ctx context.Context, stmt engine.Statement) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sqlText := stmt.SQL
	if len(stmt.Params) > 0 {
		if n := engine.CountPlaceholders(sqlText); n != len(stmt.Params) {
			return "", fmt.Errorf("statement has %d placeholders but %d parameters", n, len(stmt.Params))
		}
		sqlText = engine.RewritePlaceholders(sqlText, func(pos int) string {
			return "$" + strconv.Itoa(pos)
		})
	}

	exec := &execution{started: time.Now()}
	args := append([]any{pgx.QueryResultFormats{pgx.TextFormatCode}}, stmt.Params...)
	columns, rows, err := e.run(ctx, sqlText, args)
	exec.finished = time.Now()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		exec.state = engine.StateFailed
		exec.reason = err.Error()
	} else {
		exec.state = engine.StateSucceeded
		exec.columns = columns
		exec.rows = rows
	}

	id := uuid.NewString()
	e.store(id, exec)
	return id, nil
}

func (e *Engine) run(ctx context.Context, sqlText string, args []any) ([]string, [][]string, error) {
	rows, err := e.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []string
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}
	var out [][]string
	for rows.Next() {
		raw := rows.RawValues()
		values := make([]string, len(raw))
		for i, v := range raw {
			values[i] = string(v)
		}
		out = append(out, values)
	}
	return columns, out, rows.Err()
}

func (e *Engine) store(id string, exec *execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executions[id] = exec
	e.order = append(e.order, id)
	for len(e.order) > e.maxExecutions {
		delete(e.executions, e.order[0])
		e.order = e.order[1:]
	}
}

func (e *Engine) lookup(id string) (*execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[id]
	if !ok {
		return nil, fmt.Errorf("unknown or expired execution %s", id)
	}
	return exec, nil
}

func (e *Engine) Status(ctx context.Context, executionID string) (*engine.Status, error) {
	exec, err := e.lookup(executionID)
	if err != nil {
		return nil, err
	}
	elapsed := exec.finished.Sub(exec.started)
	return &engine.Status{
		State:  exec.state,
		Reason: exec.reason,
		Stats: engine.Stats{
			EngineExecutionTime: elapsed,
			TotalExecutionTime:  elapsed,
		},
	}, nil
}

// Results pages through the stored rows; the token is the next row offset.
func (e *Engine) Results(ctx context.Context, executionID string, req engine.ResultsRequest) (*engine.ResultPage, error) {
	exec, err := e.lookup(executionID)
	if err != nil {
		return nil, err
	}
	if exec.state != engine.StateSucceeded {
		return nil, fmt.Errorf("execution %s is %s", executionID, exec.state)
	}
	return paginate(exec.columns, exec.rows, req)
}

func paginate(columns []string, rows [][]string, req engine.ResultsRequest) (*engine.ResultPage, error) {
	offset := 0
	if req.NextToken != "" {
		n, err := strconv.Atoi(req.NextToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid next token %q", req.NextToken)
		}
		offset = n
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if req.MaxRows > 0 && offset+req.MaxRows < end {
		end = offset + req.MaxRows
	}
	page := &engine.ResultPage{Columns: columns, Rows: rows[offset:end]}
	if end < len(rows) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

// CopyRows bulk-loads rows into a table in the engine's schema.
func (e *Engine) CopyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := e.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	e.logger.Info("rows loaded", zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}
