// Package naming generates branch names and URL-safe slugs for tasks.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BranchPrefix is the namespace under which task branches are created.
const BranchPrefix = "tasks/"

// stripMarks removes diacritical marks after canonical decomposition,
// so "Änderung" slugifies to "anderung" instead of dropping the rune.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a title into a lowercase, hyphen-separated slug of at
// most maxLen characters. Non-alphanumeric runs collapse to a single
// hyphen; truncation never leaves a trailing hyphen.
func Slugify(s string, maxLen int) string {
	if normalized, _, err := transform.String(stripMarks, s); err == nil {
		s = normalized
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // suppress leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if maxLen > 0 && len(slug) > maxLen {
		slug = slug[:maxLen]
		// Prefer cutting at a word boundary when one is close enough
		if idx := strings.LastIndex(slug, "-"); idx > maxLen/2 {
			slug = slug[:idx]
		}
		slug = strings.TrimRight(slug, "-")
	}
	return slug
}

// TaskBranch returns the branch name for a task slug, e.g. "tasks/t-1-fix-login".
func TaskBranch(slug string) string {
	return BranchPrefix + CleanBranchName(slug)
}

// CleanBranchName sanitizes a candidate branch name so git accepts it as a
// ref: invalid characters become hyphens, repeated separators collapse, and
// leading/trailing separators are trimmed.
func CleanBranchName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == ' ', r == '~', r == '^', r == ':', r == '?', r == '*', r == '[', r == '\\', r == '"', r == '\'', unicode.IsControl(r):
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	cleaned = strings.ReplaceAll(cleaned, "..", "-")
	cleaned = strings.ReplaceAll(cleaned, "@{", "-")
	for strings.Contains(cleaned, "//") {
		cleaned = strings.ReplaceAll(cleaned, "//", "/")
	}
	for strings.Contains(cleaned, "--") {
		cleaned = strings.ReplaceAll(cleaned, "--", "-")
	}
	cleaned = strings.Trim(cleaned, "-./")
	cleaned = strings.TrimSuffix(cleaned, ".lock")
	return cleaned
}
