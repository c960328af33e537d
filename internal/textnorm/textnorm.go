// Package textnorm turns transcripts and agent replies into plain text that
// reads well in a terminal and through a speech synthesizer.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	replyTagRe = regexp.MustCompile(`(?i)\[\[\s*reply_to[^\]]*\]\]`)
	markdownRe = regexp.MustCompile("[`*_#>~]")

	dashes = strings.NewReplacer("—", ", ", "–", ", ")
)

// Clean removes reply-to tags and markdown marks, turns dashes into commas
// and collapses whitespace. Clean(Clean(s)) == Clean(s) for any s.
func Clean(s string) string {
	s = replyTagRe.ReplaceAllString(s, "")
	s = markdownRe.ReplaceAllString(s, "")
	s = dashes.Replace(s)
	return collapse(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripEmoji drops every code point outside the Basic Multilingual Plane.
// Everything else, invalid UTF-8 bytes included, is kept as is.
func StripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r > 0xFFFF {
			i += size
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

// ASCII drops every non-ASCII byte. Nothing is substituted.
func ASCII(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < utf8.RuneSelf {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// ForSpeech is the full reply normalization: Clean, StripEmoji, ASCII and a
// final whitespace collapse for the gaps left by dropped characters.
func ForSpeech(s string) string {
	return collapse(ASCII(StripEmoji(Clean(s))))
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
