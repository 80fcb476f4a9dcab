// Package dialect rewrites unified SQL into the syntax a specific target
// engine accepts. One Translator exists per engine type, held in a Registry.
package dialect

import (
	"fmt"
)

type QuoteStyle string

const (
	QuoteDouble   QuoteStyle = "double"
	QuoteBacktick QuoteStyle = "backtick"
)

type Feature string

const (
	FeatureConcatOperator Feature = "concat_operator"
	FeatureCTE            Feature = "cte"
	FeatureReturning      Feature = "returning"
)

// Features is the capability matrix a translator reports so callers can make
// dialect-aware decisions before generating SQL.
type Features struct {
	ConcatOperator bool
	CTE            bool
	Returning      bool
	QuoteStyle     QuoteStyle
}

func (f Features) supports(feature Feature) bool {
	switch feature {
	case FeatureConcatOperator:
		return f.ConcatOperator
	case FeatureCTE:
		return f.CTE
	case FeatureReturning:
		return f.Returning
	default:
		return false
	}
}

type Translator interface {
	Name() string
	Translate(sql string) (string, error)
	Features() Features
	Supports(feature Feature) bool
}

type TranslationError struct {
	Engine string
	SQL    string
	Cause  error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate for %s, sql %q: %v", e.Engine, e.SQL, e.Cause)
}

func (e *TranslationError) Unwrap() error { return e.Cause }
