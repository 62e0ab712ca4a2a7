/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package reqcache

import (
	"fmt"
	"regexp"

	"github.com/cloudflare/ahocorasick"
	"github.com/vasayxtx/go-glob"
)

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile invalidation pattern %q: %w", pattern, err)
	}
	return re, nil
}

// InvalidateRegexp removes all entries whose keys match re and returns the number of removed entries.
func (c *Cache[V]) InvalidateRegexp(re *regexp.Regexp) int {
	return c.removeIf(func(e *cacheEntry[V]) bool {
		return re.MatchString(e.key)
	})
}

// InvalidateSubstrings removes all entries whose keys contain at least one of the given substrings.
// Empty substrings are ignored.
func (c *Cache[V]) InvalidateSubstrings(substrings ...string) int {
	dict := make([]string, 0, len(substrings))
	for _, s := range substrings {
		if s != "" {
			dict = append(dict, s)
		}
	}
	if len(dict) == 0 {
		return 0
	}
	matcher := ahocorasick.NewStringMatcher(dict)
	return c.removeIf(func(e *cacheEntry[V]) bool {
		return matcher.Contains([]byte(e.key))
	})
}

// InvalidateGlob removes all entries whose keys match the glob pattern ("*" matches any sequence of characters).
// Unlike Invalidate, the pattern must match the whole key.
func (c *Cache[V]) InvalidateGlob(pattern string) int {
	match := glob.Compile(pattern)
	return c.removeIf(func(e *cacheEntry[V]) bool {
		return match(e.key)
	})
}
