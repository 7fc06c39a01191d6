// Package span provides offset-based helpers for scanning views of source
// text. Offsets are byte indices; NotFound marks a failed search.
package span

import (
	"fmt"
	"strings"
)

// NotFound is returned by searches that did not find what they looked for.
const NotFound = -1

// UnmatchedError reports an opening delimiter with no matching close in the
// remaining text. Offset is relative to the text that was searched.
type UnmatchedError struct {
	Offset int
	Open   string
	Close  string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("unmatched %q at offset %d (no %q follows)", e.Open, e.Offset, e.Close)
}

// IsSpace reports whether c is one of the C isspace bytes.
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// IsEnd reports whether pos is NotFound or past the end of text.
func IsEnd(pos int, text string) bool {
	return pos == NotFound || pos >= len(text)
}

// SkipWhitespace returns the first offset at or after pos that is not
// whitespace, never beyond len(text).
func SkipWhitespace(pos int, text string) int {
	if pos == NotFound {
		return pos
	}
	for !IsEnd(pos, text) && IsSpace(text[pos]) {
		pos++
	}
	return pos
}

// ParseSection returns the offset just past close when text at pos begins
// with open. The close is the first one after open; nesting is not
// considered. When open is not at pos it returns NotFound and a nil error.
func ParseSection(pos int, text, open, close string) (int, error) {
	if IsEnd(pos, text) || !strings.HasPrefix(text[pos:], open) {
		return NotFound, nil
	}
	from := pos + len(open)
	idx := strings.Index(text[from:], close)
	if idx < 0 {
		return NotFound, &UnmatchedError{Offset: pos, Open: open, Close: close}
	}
	return from + idx + len(close), nil
}

// MatchBrace expects text[pos] to be '{' and returns the offset just past
// its matching '}', counting nested braces.
func MatchBrace(pos int, text string) (int, error) {
	if IsEnd(pos, text) || text[pos] != '{' {
		return NotFound, nil
	}
	depth := 0
	for i := pos; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return NotFound, &UnmatchedError{Offset: pos, Open: "{", Close: "}"}
}

// IndexAny is strings.IndexAny starting at pos, returning an absolute offset.
func IndexAny(text string, pos int, chars string) int {
	if IsEnd(pos, text) {
		return NotFound
	}
	idx := strings.IndexAny(text[pos:], chars)
	if idx < 0 {
		return NotFound
	}
	return pos + idx
}

// Index is strings.Index starting at pos, returning an absolute offset.
func Index(text string, pos int, substr string) int {
	if IsEnd(pos, text) {
		return NotFound
	}
	idx := strings.Index(text[pos:], substr)
	if idx < 0 {
		return NotFound
	}
	return pos + idx
}

// TrimWhitespace returns view without leading and trailing whitespace. ok is
// false when nothing remains.
func TrimWhitespace(view string) (trimmed string, ok bool) {
	begin, end := 0, len(view)
	for begin < end && IsSpace(view[begin]) {
		begin++
	}
	for end > begin && IsSpace(view[end-1]) {
		end--
	}
	if begin == end {
		return "", false
	}
	return view[begin:end], true
}
