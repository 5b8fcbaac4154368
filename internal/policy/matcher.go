package policy

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/rs/zerolog"
)

// Matcher decides whether a domain falls under a limit config. Pattern
// forms, checked in order:
//
//	/regex/     regular expression between slashes
//	*.suffix    the apex domain and any subdomain of it
//	*           general wildcard, * matches any run of characters
//	exact       case-insensitive equality
//
// A config with an empty match_pattern applies to its own domain only.
type Matcher struct {
	logger zerolog.Logger
	cache  *lru.Cache[string, *compiledPattern]
}

type compiledPattern struct {
	re  *regexp.Regexp
	bad bool
}

// NewMatcher creates a Matcher with a compiled-pattern cache of the
// given size.
func NewMatcher(cacheSize int, logger zerolog.Logger) *Matcher {
	if cacheSize <= 0 {
		cacheSize = 128
	}

	// Only errors on size <= 0, which is excluded above
	cache, _ := lru.New[string, *compiledPattern](cacheSize)

	return &Matcher{
		logger: logger.With().Str("component", "matcher").Logger(),
		cache:  cache,
	}
}

// Matches reports whether domain falls under the limit config
func (m *Matcher) Matches(domain string, limit storage.WebsiteLimit) bool {
	if domain == "" {
		return false
	}

	domain = strings.ToLower(domain)
	pattern := limit.MatchPattern

	if pattern == "" {
		return domain == strings.ToLower(limit.Domain)
	}

	// Regex form: /.../
	if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		return m.matchRegex(domain, pattern)
	}

	lowered := strings.ToLower(pattern)

	// Subdomain form: *.suffix covers the apex too
	if strings.HasPrefix(lowered, "*.") && !strings.Contains(lowered[2:], "*") {
		suffix := lowered[2:]
		return domain == suffix || strings.HasSuffix(domain, "."+suffix)
	}

	// General wildcard
	if strings.Contains(lowered, "*") {
		return m.matchWildcard(domain, lowered)
	}

	return domain == lowered
}

// matchRegex evaluates a /regex/ pattern. Invalid expressions fail
// closed: they match nothing.
func (m *Matcher) matchRegex(domain, pattern string) bool {
	compiled := m.compile(pattern, func(expr string) (*regexp.Regexp, error) {
		return regexp.Compile(expr)
	}, pattern[1:len(pattern)-1])
	if compiled.bad {
		return false
	}
	return compiled.re.MatchString(domain)
}

// matchWildcard evaluates a general * pattern by translating it to an
// anchored regex with all other characters quoted.
func (m *Matcher) matchWildcard(domain, pattern string) bool {
	compiled := m.compile("*"+pattern, func(expr string) (*regexp.Regexp, error) {
		parts := strings.Split(expr, "*")
		for i, part := range parts {
			parts[i] = regexp.QuoteMeta(part)
		}
		return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	}, pattern)
	if compiled.bad {
		return false
	}
	return compiled.re.MatchString(domain)
}

// compile returns the cached compilation for cacheKey, compiling expr
// on a miss. Failed compilations are cached too so a bad pattern is
// logged once, not on every event.
func (m *Matcher) compile(cacheKey string, build func(string) (*regexp.Regexp, error), expr string) *compiledPattern {
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached
	}

	re, err := build(expr)
	if err != nil {
		m.logger.Warn().
			Str("pattern", expr).
			Err(err).
			Msg("Invalid match pattern, treating as non-matching")
		compiled := &compiledPattern{bad: true}
		m.cache.Add(cacheKey, compiled)
		return compiled
	}

	compiled := &compiledPattern{re: re}
	m.cache.Add(cacheKey, compiled)
	return compiled
}
