package repositories

import (
	"strings"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
	dateLayout       = "2006-01-02"
)

// dateParam formats a day for comparisons against DATE columns
func dateParam(t time.Time) string {
	return t.Format(dateLayout)
}

// containsPattern builds a LIKE pattern matching s anywhere, escaping the
// LIKE wildcards in s. Use with ESCAPE '\'.
func containsPattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(s) + "%"
}

// foldedPattern is containsPattern lower-cased, to match against casefold(col)
func foldedPattern(s string) string {
	return strings.ToLower(containsPattern(s))
}

// boundLimit clamps a caller supplied limit to a sane range
func boundLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func boundOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func boolParam(b bool) int {
	if b {
		return 1
	}
	return 0
}
