package dialect

import (
	"github.com/xwb1989/sqlparser"
)

// mysqlFamily rewrites unified SQL for engines speaking the MySQL dialect.
// Doris exposes the same surface over the MySQL protocol, so it shares the
// rewrite set and differs only in its feature matrix.
type mysqlFamily struct {
	name     string
	features Features
}

func NewMySQL() Translator {
	return &mysqlFamily{
		name: "mysql",
		features: Features{
			ConcatOperator: false,
			CTE:            true,
			Returning:      false,
			QuoteStyle:     QuoteBacktick,
		},
	}
}

func NewDoris() Translator {
	return &mysqlFamily{
		name: "doris",
		features: Features{
			ConcatOperator: false,
			CTE:            true,
			Returning:      false,
			QuoteStyle:     QuoteBacktick,
		},
	}
}

func (t *mysqlFamily) Name() string { return t.name }

func (t *mysqlFamily) Features() Features { return t.features }

func (t *mysqlFamily) Supports(feature Feature) bool { return t.features.supports(feature) }

func (t *mysqlFamily) Translate(sql string) (string, error) {
	rewritten := mysqlRewrite(sql)
	if _, err := sqlparser.Parse(rewritten); err != nil {
		return "", &TranslationError{Engine: t.name, SQL: sql, Cause: err}
	}
	return rewritten, nil
}
