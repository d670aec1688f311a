// Package textutil provides token handling for parallel corpora.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fields splits a pre-tokenized line on whitespace.
func Fields(line string) []string {
	return strings.Fields(line)
}

// Normalize lowercases a token.
func Normalize(token string) string {
	return strings.ToLower(token)
}

// IsPrintable reports whether a token is non-empty valid UTF-8 without control characters.
// Embedding files produced by some toolkits carry binary garbage in the first rows.
func IsPrintable(token string) bool {
	if token == "" || !utf8.ValidString(token) {
		return false
	}
	for _, r := range token {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
