package dialect

import (
	"regexp"
	"strings"

	"github.com/fedquery/fedquery/internal/sqltext"
)

var (
	intervalLiteral  = regexp.MustCompile(`(?i)\bINTERVAL\s+'(\d+)\s+([a-zA-Z]+)'`)
	currentDateRe    = regexp.MustCompile(`(?i)\bCURRENT_DATE\b(\(\))?`)
	currentTimestamp = regexp.MustCompile(`(?i)\bCURRENT_TIMESTAMP\b(\(\))?`)
)

// rewriteIntervals converts ISO-style interval literals (INTERVAL '7 days')
// into the unit-keyword form (INTERVAL 7 DAY) used by MySQL-family engines.
func rewriteIntervals(sql string) string {
	return intervalLiteral.ReplaceAllStringFunc(sql, func(match string) string {
		groups := intervalLiteral.FindStringSubmatch(match)
		unit := strings.ToUpper(strings.TrimSuffix(strings.ToLower(groups[2]), "s"))
		return "INTERVAL " + groups[1] + " " + unit
	})
}

func rewriteDateFunctions(sql string) string {
	sql = currentDateRe.ReplaceAllString(sql, "CURDATE()")
	return currentTimestamp.ReplaceAllString(sql, "NOW()")
}

// mysqlRewrite applies the full MySQL-family rewrite set: identifier
// quoting, interval literals, date/time functions. The interval rewrite runs
// on the whole text because its quoted operand is part of the pattern; the
// function rewrites stay outside string literals.
func mysqlRewrite(sql string) string {
	sql = sqltext.NormalizeQuotes(sql)
	sql = rewriteIntervals(sql)
	return sqltext.RewriteOutsideStrings(sql, rewriteDateFunctions)
}

// normalizeForValidation maps unified SQL onto the grammar the embedded
// parser accepts, so parse validation does not reject constructs that are
// valid unified SQL but spelled differently per engine. The result is only
// used for validation, never returned to callers.
func normalizeForValidation(sql string) string {
	return mysqlRewrite(sql)
}
