// Package report renders the data-quality dashboard from the Elementary
// results table.
package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
)

//go:embed dashboard.html.tmpl
var dashboardTemplate string

var tmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"comma":   func(n int64) string { return humanize.Comma(n) },
	"pct":     func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) + "%" },
	"upper":   strings.ToUpper,
	"prefix":  prefix,
	"clock":   clock,
	"orDash":  orDash,
	"percent": PassRate,
	"add":     func(a, b int) int { return a + b },
}).Parse(dashboardTemplate))

// Querier executes a read statement and returns its rows.
type Querier interface {
	Query(ctx context.Context, stmt engine.Statement) ([]map[string]string, error)
}

type Invocation struct {
	ID      string
	RunTime string
	Tests   int
	Passed  int
	Failed  int
}

type TestRow struct {
	TestName   string
	Table      string
	TestType   string
	Column     string
	Status     string
	Failures   int
	DetectedAt string
}

type TableCount struct {
	Table string
	Rows  int64
}

type Coverage struct {
	Table  string
	Tests  int
	Passed int
	Failed int
}

type KindBreakdown struct {
	TestType string
	Count    int
	Passed   int
}

type TrendPoint struct {
	Date   string
	Runs   int
	Total  int
	Passed int
}

// Dashboard is everything the HTML page shows.
type Dashboard struct {
	GeneratedAt  time.Time
	Database     string
	ResultsTable string
	Invocations  []Invocation
	LatestTests  []TestRow
	Counts       []TableCount
	Coverage     []Coverage
	Kinds        []KindBreakdown
	Trend        []TrendPoint
}

// Latest returns the newest invocation, or a zero value when none exist.
func (d *Dashboard) Latest() Invocation {
	if len(d.Invocations) == 0 {
		return Invocation{}
	}
	return d.Invocations[0]
}

// PassRate is the latest invocation's pass percentage.
func (d *Dashboard) PassRate() float64 {
	latest := d.Latest()
	return PassRate(latest.Passed, latest.Tests)
}

// History returns at most the five newest invocations.
func (d *Dashboard) History() []Invocation {
	if len(d.Invocations) > 5 {
		return d.Invocations[:5]
	}
	return d.Invocations
}

// PassRate returns passed/total as a percentage, 0 when total is 0.
func PassRate(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

// Config wires a Renderer.
type Config struct {
	Querier      Querier
	Catalog      *catalog.Catalog
	Database     string
	ResultsTable string
	Now          func() time.Time
}

// Renderer collects dashboard data and renders it as HTML.
type Renderer struct {
	querier  Querier
	catalog  *catalog.Catalog
	database string
	table    string
	now      func() time.Time
}

// NewRenderer validates the configuration.
func NewRenderer(cfg Config) (*Renderer, error) {
	if !catalog.ValidIdentifier(cfg.ResultsTable) {
		return nil, fmt.Errorf("invalid results table name %q", cfg.ResultsTable)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Renderer{
		querier:  cfg.Querier,
		catalog:  cfg.Catalog,
		database: cfg.Database,
		table:    cfg.ResultsTable,
		now:      now,
	}, nil
}

func (r *Renderer) qualified() string {
	return catalog.Render(catalog.DatabaseToken, r.database) + "." + r.table
}

func (r *Renderer) sql(format string) string {
	table := r.qualified()
	return fmt.Sprintf(format, table, fmt.Sprintf(latestInvocation, table))
}

// Collect runs the six dashboard queries one after another.
func (r *Renderer) Collect(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{
		GeneratedAt:  r.now().UTC(),
		Database:     r.database,
		ResultsTable: r.table,
	}

	rows, err := r.querier.Query(ctx, engine.NewStatement(r.sql(invocationsSQL)))
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	for _, row := range rows {
		d.Invocations = append(d.Invocations, Invocation{
			ID:      row["invocation_id"],
			RunTime: row["run_time"],
			Tests:   atoi(row["tests"]),
			Passed:  atoi(row["passed"]),
			Failed:  atoi(row["failed"]),
		})
	}

	rows, err = r.querier.Query(ctx, engine.NewStatement(r.sql(latestTestsSQL)))
	if err != nil {
		return nil, fmt.Errorf("query latest tests: %w", err)
	}
	for _, row := range rows {
		d.LatestTests = append(d.LatestTests, TestRow{
			TestName:   row["test_name"],
			Table:      row["table_name"],
			TestType:   row["test_type"],
			Column:     row["column_name"],
			Status:     row["status"],
			Failures:   atoi(row["failures"]),
			DetectedAt: row["detected_at"],
		})
	}

	if tables := r.catalog.Tables(); len(tables) > 0 {
		rows, err = r.querier.Query(ctx, rowCountsStatement(tables, r.database))
		if err != nil {
			return nil, fmt.Errorf("query row counts: %w", err)
		}
		counts := make(map[string]int64, len(rows))
		for _, row := range rows {
			n, _ := strconv.ParseInt(row["cnt"], 10, 64)
			counts[row["tbl"]] = n
		}
		for _, t := range tables {
			if n, ok := counts[t]; ok {
				d.Counts = append(d.Counts, TableCount{Table: t, Rows: n})
			}
		}
	}

	rows, err = r.querier.Query(ctx, engine.NewStatement(r.sql(coverageSQL)))
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	for _, row := range rows {
		d.Coverage = append(d.Coverage, Coverage{
			Table:  row["table_name"],
			Tests:  atoi(row["test_count"]),
			Passed: atoi(row["passed"]),
			Failed: atoi(row["failed"]),
		})
	}

	rows, err = r.querier.Query(ctx, engine.NewStatement(r.sql(testTypesSQL)))
	if err != nil {
		return nil, fmt.Errorf("query test types: %w", err)
	}
	for _, row := range rows {
		d.Kinds = append(d.Kinds, KindBreakdown{
			TestType: row["test_type"],
			Count:    atoi(row["count"]),
			Passed:   atoi(row["passed"]),
		})
	}

	rows, err = r.querier.Query(ctx, engine.NewStatement(r.sql(trendSQL)))
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	for _, row := range rows {
		d.Trend = append(d.Trend, TrendPoint{
			Date:   row["run_date"],
			Runs:   atoi(row["runs"]),
			Total:  atoi(row["total_tests"]),
			Passed: atoi(row["passed"]),
		})
	}

	return d, nil
}

// Render writes the dashboard as a self-contained HTML document.
func Render(w io.Writer, d *Dashboard) error {
	return tmpl.Execute(w, d)
}

// Generate collects and renders the dashboard.
func (r *Renderer) Generate(ctx context.Context) (string, error) {
	d, err := r.Collect(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Render(&buf, d); err != nil {
		return "", fmt.Errorf("render dashboard: %w", err)
	}
	return buf.String(), nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// clock extracts HH:MM:SS from a "YYYY-MM-DD HH:MM:SS..." timestamp.
func clock(ts string) string {
	if len(ts) >= 19 {
		return ts[11:19]
	}
	return ts
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
