package dialect

import (
	"github.com/xwb1989/sqlparser"
)

// passThrough serves engines whose dialect already accepts unified SQL. It
// validates parseability and returns the input unchanged, which makes it
// trivially idempotent.
type passThrough struct {
	name     string
	features Features
}

func NewPostgres() Translator {
	return &passThrough{
		name: "postgresql",
		features: Features{
			ConcatOperator: true,
			CTE:            true,
			Returning:      true,
			QuoteStyle:     QuoteDouble,
		},
	}
}

func NewDruid() Translator {
	return &passThrough{
		name: "druid",
		features: Features{
			ConcatOperator: true,
			CTE:            false,
			Returning:      false,
			QuoteStyle:     QuoteDouble,
		},
	}
}

func (t *passThrough) Name() string { return t.name }

func (t *passThrough) Features() Features { return t.features }

func (t *passThrough) Supports(feature Feature) bool { return t.features.supports(feature) }

func (t *passThrough) Translate(sql string) (string, error) {
	if _, err := sqlparser.Parse(normalizeForValidation(sql)); err != nil {
		return "", &TranslationError{Engine: t.name, SQL: sql, Cause: err}
	}
	return sql, nil
}
