package fetcher

import (
	"fmt"
	"strings"
)

// Dialect adapts the ledger query to a SQL engine.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Schema prefixes warehouse table names, e.g. "qdb.dbo.".
	Schema string
	// ConcatOp joins strings in the FAU sort key.
	ConcatOp string
	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// SQLServer is the financial warehouse dialect.
var SQLServer = Dialect{
	Name:        "sqlserver",
	Driver:      "sqlserver",
	Schema:      "qdb.dbo.",
	ConcatOp:    "+",
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
}

// SQLite runs the same query against a local copy of the warehouse tables.
var SQLite = Dialect{
	Name:        "sqlite",
	Driver:      "sqlite",
	ConcatOp:    "||",
	Placeholder: func(int) string { return "?" },
}

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "sqlite":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported warehouse driver %q", driver)
}

// BuildQuery returns the ledger query for costCenters bind parameters. Bind
// order is ledger_year_month, account_number, then each cost center. The
// fiscal year end query only counts rows from the preliminary close.
func (d Dialect) BuildQuery(fiscalYearEnd bool, costCenters int) string {
	cat := " " + d.ConcatOp + " "
	fau := strings.Join([]string{
		"glb.account_number", "' '", "glb.cost_center_code", "' '", "glb.fund_number", "' '",
		"acc.account_title", "' '", "fun.fund_title",
	}, cat)

	ccs := make([]string, costCenters)
	for i := range ccs {
		ccs[i] = d.Placeholder(i + 3)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT
    %s AS fau
,   glb.sub_code
,   glb.account_number
,   glb.cost_center_code
,   glb.fund_number
,   acc.account_title
,   fun.fund_title
,   SUM(-glb.ytd_appropriation) AS ytd_approp
,   SUM(glb.ytd_financial) AS ytd_expense
,   SUM(glb.encumbrance) AS encumbrance
,   SUM(glb.memo_lien) AS memo_lien
,   SUM(-glb.bal_operating) AS operating_bal_am
FROM %sgl_balances glb
INNER JOIN %saccount acc
    ON glb.location_code = acc.location_code
    AND glb.account_number = acc.account_number
    AND glb.cost_center_code = acc.cost_center_code
INNER JOIN %sfund fun
    ON glb.location_code = fun.location_code
    AND glb.fund_number = fun.fund_number
WHERE glb.location_code = '4'
AND (glb.dept_code_account LIKE '54%%' OR glb.dept_code_account = '0461')
AND fun.fund_closed_flag <> 'Y'
AND glb.ledger_year_month = %s
AND glb.account_number = %s
AND glb.cost_center_code IN (%s)
`, fau, d.Schema, d.Schema, d.Schema, d.Placeholder(1), d.Placeholder(2), strings.Join(ccs, ", "))

	if fiscalYearEnd {
		b.WriteString("AND glb.fye_proc_ind = 'P'\n")
	}

	b.WriteString(`GROUP BY
    glb.account_number
,   glb.cost_center_code
,   glb.fund_number
,   glb.sub_code
,   acc.account_title
,   fun.fund_title
ORDER BY fau, glb.sub_code`)
	return b.String()
}
