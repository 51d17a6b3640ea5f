// Package slug derives URL-safe article identifiers from titles.
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxLength bounds a derived slug.
const MaxLength = 200

// hashBuckets is the size of the disambiguation suffix space.
const hashBuckets = 10000

// Fallback replaces a title that has no [a-z0-9] character at all.
const Fallback = "article"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Derive lowercases the title, collapses every non [a-z0-9] run to a hyphen,
// trims hyphens and truncates to MaxLength.
func Derive(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	return s
}

// Suffix is the stable disambiguation number for a url.
func Suffix(url string) uint64 {
	return xxhash.Sum64String(url) % hashBuckets
}

// Disambiguate appends the url hash bucket to base.
func Disambiguate(base, url string) string {
	return base + "-" + strconv.FormatUint(Suffix(url), 10)
}

// Checker reports whether a slug is already taken.
type Checker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// Resolve derives the slug for title and disambiguates once when it is taken.
// A residual collision is left for the storage uniqueness constraint to reject.
func Resolve(ctx context.Context, checker Checker, title, url string) (string, error) {
	base := orFallback(Derive(title))
	taken, err := checker.SlugExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", base, err)
	}
	if !taken {
		return base, nil
	}
	return Disambiguate(base, url), nil
}

// ResolveSequential tries base, base-1, base-2, ... until a free slug is found.
// Used for backfilling rows that never received a slug.
func ResolveSequential(ctx context.Context, checker Checker, title string, maxTries int) (string, error) {
	base := orFallback(Derive(title))
	candidate := base
	for i := 1; i <= maxTries; i++ {
		taken, err := checker.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxTries)
}

func orFallback(base string) string {
	if base == "" {
		return Fallback
	}
	return base
}
