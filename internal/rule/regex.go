package rule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPatternCacheSize bounds the number of compiled patterns kept in memory
const DefaultPatternCacheSize = 512

var errUnsupportedFlag = errors.New("unsupported pattern flag")

// compiled holds a compiled pattern, or the error that prevented compilation
type compiled struct {
	re  *regexp.Regexp
	err error
}

// patternCache compiles rule patterns once and remembers failures too
type patternCache struct {
	cache *lru.Cache[string, compiled]
}

func newPatternCache(size int) *patternCache {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	// lru.New only fails for non-positive sizes
	c, _ := lru.New[string, compiled](size)
	return &patternCache{cache: c}
}

func (p *patternCache) get(pattern string) (*regexp.Regexp, error) {
	if c, ok := p.cache.Get(pattern); ok {
		return c.re, c.err
	}

	re, err := compilePattern(pattern)
	p.cache.Add(pattern, compiled{re: re, err: err})
	return re, err
}

// compilePattern accepts either a plain RE2 expression or a delimited
// expression such as /^abc$/i. Flags i, m, s and U map onto RE2 inline flags;
// u is accepted since RE2 always matches UTF-8.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	expr, flags, delimited := splitDelimited(pattern)
	if !delimited {
		return regexp.Compile(pattern)
	}

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'u':
		default:
			return nil, fmt.Errorf("%w %q in %s", errUnsupportedFlag, f, pattern)
		}
	}

	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}
	return regexp.Compile(expr)
}

// splitDelimited separates "/expr/flags". The trailing part must consist of
// letters only, otherwise the pattern is treated as plain.
func splitDelimited(pattern string) (expr, flags string, ok bool) {
	if len(pattern) < 2 {
		return "", "", false
	}

	delim := pattern[0]
	if delim != '/' && delim != '#' && delim != '~' {
		return "", "", false
	}

	end := strings.LastIndexByte(pattern, delim)
	if end <= 0 {
		return "", "", false
	}

	flags = pattern[end+1:]
	for _, r := range flags {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", "", false
		}
	}

	return pattern[1:end], flags, true
}
