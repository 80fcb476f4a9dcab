package dialect

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fedquery/fedquery/internal/observability"
)

// Registry holds one translator per engine type. It is constructed once and
// shared across requests; lookups vastly outnumber registrations, so access
// is guarded by a read-write lock. Translations are memoized in an LRU with
// a TTL, keyed by (engine, sql).
type Registry struct {
	mu          sync.RWMutex
	translators map[string]Translator
	cache       *expirable.LRU[string, string]
}

// NewRegistry builds a registry pre-populated with the built-in engine
// translators. A cacheSize of zero disables the translation cache.
func NewRegistry(cacheSize int, cacheTTL time.Duration) *Registry {
	r := &Registry{translators: make(map[string]Translator)}
	if cacheSize > 0 {
		r.cache = expirable.NewLRU[string, string](cacheSize, nil, cacheTTL)
	}
	for _, t := range []Translator{NewPostgres(), NewMySQL(), NewDoris(), NewDruid()} {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[t.Name()] = t
}

func (r *Registry) Get(engine string) (Translator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.translators[engine]
	return t, ok
}

// Translate rewrites sql for the given engine type, serving repeated inputs
// from the cache.
func (r *Registry) Translate(engine, sql string) (string, error) {
	translator, ok := r.Get(engine)
	if !ok {
		return "", &TranslationError{Engine: engine, SQL: sql, Cause: fmt.Errorf("no translator registered")}
	}

	key := engine + "\x00" + sql
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			observability.IncrementTranslationCacheHit()
			return cached, nil
		}
	}

	translated, err := translator.Translate(sql)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		r.cache.Add(key, translated)
	}
	return translated, nil
}
