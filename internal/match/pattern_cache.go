package match

import (
	"regexp"
	"sync"

	"go.uber.org/zap"
)

// PatternCache memoizes compiled patterns keyed by their source string.
// Compilation happens once per source for the life of the process; sources
// that fail to compile are remembered too, so the evaluator can degrade to
// literal matching without retrying the compiler on every query.
type PatternCache struct {
	logger *zap.Logger

	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
	invalid  map[string]struct{}
}

// NewPatternCache creates an empty pattern cache.
func NewPatternCache(logger *zap.Logger) *PatternCache {
	return &PatternCache{
		logger:   logger,
		compiled: make(map[string]*regexp.Regexp),
		invalid:  make(map[string]struct{}),
	}
}

// Get returns the compiled, case-insensitive form of source. The second
// return is false when the source is not valid pattern syntax; callers fall
// back to literal substring matching in that case.
func (pc *PatternCache) Get(source string) (*regexp.Regexp, bool) {
	pc.mu.RLock()
	re, ok := pc.compiled[source]
	if ok {
		pc.mu.RUnlock()
		return re, true
	}
	if _, bad := pc.invalid[source]; bad {
		pc.mu.RUnlock()
		return nil, false
	}
	pc.mu.RUnlock()

	pc.mu.Lock()
	defer pc.mu.Unlock()

	// Re-check after acquiring the write lock.
	if re, ok := pc.compiled[source]; ok {
		return re, true
	}
	if _, bad := pc.invalid[source]; bad {
		return nil, false
	}

	re, err := regexp.Compile("(?i)" + source)
	if err != nil {
		pc.invalid[source] = struct{}{}
		pc.logger.Warn("pattern failed to compile, degrading to literal matching",
			zap.String("pattern", source),
			zap.Error(err))
		return nil, false
	}

	pc.compiled[source] = re
	return re, true
}

// Warm compiles the given sources ahead of time so that invalid syntax is
// reported at constraint creation rather than first evaluation.
func (pc *PatternCache) Warm(sources []string) {
	for _, s := range sources {
		pc.Get(s)
	}
}

// Stats reports how many sources compiled and how many run in literal
// fallback mode.
func (pc *PatternCache) Stats() (compiled, fallback int) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.compiled), len(pc.invalid)
}
