package report

import (
	"strings"

	"github.com/nucleus/lakehouse/internal/catalog"
	"github.com/nucleus/lakehouse/internal/engine"
)

// latestInvocation selects the invocation with the newest result. Each query
// embeds it separately, so sections may disagree if a run lands mid-report.
const latestInvocation = `(
    SELECT invocation_id FROM %[1]s
    ORDER BY detected_at DESC LIMIT 1
)`

const invocationsSQL = `SELECT invocation_id, MIN(detected_at) AS run_time, COUNT(*) AS tests,
       SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END) AS passed,
       SUM(CASE WHEN status = 'fail' THEN 1 ELSE 0 END) AS failed
FROM %[1]s
GROUP BY invocation_id
ORDER BY run_time DESC
LIMIT 10`

const latestTestsSQL = `SELECT test_name, table_name, test_type, column_name, status, failures, detected_at
FROM %[1]s
WHERE invocation_id = %[2]s
ORDER BY table_name, test_name`

const coverageSQL = `SELECT table_name, COUNT(DISTINCT test_name) AS test_count,
       SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END) AS passed,
       SUM(CASE WHEN status = 'fail' THEN 1 ELSE 0 END) AS failed
FROM %[1]s
WHERE invocation_id = %[2]s
GROUP BY table_name
ORDER BY table_name`

const testTypesSQL = `SELECT test_type, COUNT(*) AS count,
       SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END) AS passed
FROM %[1]s
WHERE invocation_id = %[2]s
GROUP BY test_type
ORDER BY count DESC`

const trendSQL = `SELECT DATE(detected_at) AS run_date,
       COUNT(DISTINCT invocation_id) AS runs,
       COUNT(*) AS total_tests,
       SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END) AS passed
FROM %[1]s
GROUP BY DATE(detected_at)
ORDER BY run_date DESC
LIMIT 7`

// rowCountsStatement counts rows in every table; names come from the
// validated catalog and labels are bound as parameters.
func rowCountsStatement(tables []string, database string) engine.Statement {
	parts := make([]string, len(tables))
	params := make([]any, len(tables))
	for i, t := range tables {
		parts[i] = "SELECT CAST(? AS VARCHAR) AS tbl, COUNT(*) AS cnt FROM " + catalog.Render(catalog.DatabaseToken, database) + "." + t
		params[i] = t
	}
	return engine.Statement{SQL: strings.Join(parts, "\nUNION ALL "), Params: params}
}
