// Package fingerprint derives the duplicate-detection key for a book from its
// title and author. The key is deliberately coarse: it ignores case,
// punctuation, whitespace, and therefore edition/ISBN differences, so that two
// records of the same logical work collide.
package fingerprint

import "strings"

// Normalize lowercases s and strips every character outside [a-z0-9].
// Differently-punctuated forms of the same text normalize identically.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint returns the duplicate key for a (title, author) pair. Uniqueness
// is scoped per user; the same fingerprint for two different users is not a
// duplicate.
func Fingerprint(title, author string) string {
	return Normalize(title) + "-" + Normalize(author)
}
