package transcoder

import (
	"unicode"
)

// LowerCamel converts an exported Go name to the lowerCamel form used for
// script members. Leading acronyms are lowered as a unit:
// Add -> add, DelayedEcho -> delayedEcho, HTTPGet -> httpGet, ID -> id.
func LowerCamel(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(runes):
		// single capital or whole-word acronym
	case unicode.IsLetter(runes[n]):
		// keep the last capital: it starts the next word
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
