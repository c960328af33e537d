package textnorm

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samples = []string{
	"",
	"   ",
	"plain text",
	"**bold** and _italic_ and `code`",
	"# Heading\n\n> quoted\n~~strike~~",
	"[[reply_to_current]] Sure thing!",
	"[[ REPLY_TO: 123 ]]hello",
	"[`[reply_to]] nested tag",
	"[[reply_to_[[reply_to]]]] doubled",
	"one — two – three",
	"——",
	"tabs\tand\r\nnewlines\n\n\nhere",
	" non-breaking space　ideographic",
	"emoji \U0001F600 mixed ☕ cup",
	"café ☕ test",
	"bad \xff\xfe bytes",
	" _ * ` # > ~ ",
}

func TestClean(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[[reply_to_current]] Sure thing!", "Sure thing!"},
		{"[[ Reply_To:42 ]] ok then", "ok then"},
		{"**bold** `code` _it_ #tag >quote ~x~", "bold code it tag quote x"},
		{"left — right", "left , right"},
		{"a–b", "a, b"},
		{"  line one\n\nline   two  ", "line one line two"},
		{"[`[reply_to]] after", "[[replyto]] after"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Clean(tt.input), "input %q", tt.input)
	}
}

func TestClean_Idempotent(t *testing.T) {
	for _, s := range samples {
		once := Clean(s)
		assert.Equal(t, once, Clean(once), "input %q", s)
	}
}

func TestClean_NoDoubleSpacesNoEdges(t *testing.T) {
	for _, s := range samples {
		out := Clean(s)
		assert.NotContains(t, out, "  ", "input %q", s)
		if out == "" {
			continue
		}
		first := []rune(out)[0]
		last := []rune(out)[len([]rune(out))-1]
		assert.False(t, unicode.IsSpace(first), "leading space for %q", s)
		assert.False(t, unicode.IsSpace(last), "trailing space for %q", s)
	}
}

func TestStripEmoji(t *testing.T) {
	assert.Equal(t, "hi  there", StripEmoji("hi \U0001F44B there"))
	assert.Equal(t, "cup ☕", StripEmoji("cup ☕"))
	assert.Equal(t, "", StripEmoji("\U0001F600\U0001F680\U0010FFFF"))
	assert.Equal(t, "bad \xff bytes", StripEmoji("bad \xff bytes"))
}

func TestStripEmoji_KeepsBMP(t *testing.T) {
	for _, s := range samples {
		mixed := s + "\U0001F389" + s
		out := StripEmoji(mixed)
		for _, r := range out {
			assert.LessOrEqual(t, r, rune(0xFFFF))
		}
		assert.Equal(t, StripEmoji(s)+StripEmoji(s), out, "input %q", s)
	}
}

func TestASCII_DropsWithoutPlaceholder(t *testing.T) {
	assert.Equal(t, "caf  test", ASCII("café ☕ test"))
	assert.Equal(t, "abc", ASCII("aüb\U0001F600c"))
}

func TestForSpeech(t *testing.T) {
	assert.Equal(t, "caf test", ForSpeech("café ☕ test"))
	assert.Equal(t, "Done , lights are on.", ForSpeech("[[reply_to_current]] **Done** — lights are on. \U0001F4A1"))

	for _, s := range samples {
		out := ForSpeech(s)
		for i := 0; i < len(out); i++ {
			require.Less(t, out[i], byte(0x80), "non-ascii byte in %q", out)
		}
		assert.NotContains(t, out, "  ")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 600)
	assert.Len(t, Truncate(long, 500), 500)
	assert.Equal(t, "short", Truncate("short", 500))
	assert.Equal(t, "éé", Truncate("ééé", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
