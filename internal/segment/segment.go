// Package segment splits streamed text into sentence-like parts. It is the
// boundary detector behind the sentence collector: the collector feeds it a
// growing buffer and treats every part but the last as a complete sentence.
package segment

import "strings"

// abbreviations lists lowercase tokens whose trailing period does not end a
// sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "etc": {}, "eg": {}, "e.g": {}, "ie": {}, "i.e": {},
	"inc": {}, "ltd": {}, "co": {}, "no": {}, "vol": {}, "approx": {},
}

// Segmenter splits text into ordered sentence-like substrings. The
// concatenation of the returned parts equals the input up to whitespace
// normalization; the last part may be an incomplete sentence.
type Segmenter struct{}

// New returns a Segmenter.
func New() *Segmenter {
	return &Segmenter{}
}

// Segment splits s into sentence-like parts. A sentence ends at '.', '!' or
// '?' followed by whitespace, or at a newline. Periods inside decimals
// ("3.14") and after common abbreviations ("Dr. Smith") do not end a
// sentence. Returns nil for empty input; a string with no boundary comes back
// as a single part.
func (sg *Segmenter) Segment(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			parts = appendPart(parts, s[start:i+1])
			start = i + 1
		case '.', '!', '?':
			if i+1 >= len(s) || !isSpace(s[i+1]) {
				continue
			}
			if s[i] == '.' && periodIsGuarded(s[start:i]) {
				continue
			}
			parts = appendPart(parts, s[start:i+1])
			// Whitespace between sentences belongs to no part.
			i++
			for i+1 < len(s) && isSpace(s[i+1]) {
				i++
			}
			start = i + 1
		}
	}
	if start < len(s) {
		parts = appendPart(parts, s[start:])
	}
	return parts
}

// periodIsGuarded reports whether the period terminating prefix is part of an
// abbreviation rather than a sentence end.
func periodIsGuarded(prefix string) bool {
	word := lastWord(prefix)
	if word == "" {
		return false
	}
	_, abbr := abbreviations[strings.ToLower(word)]
	return abbr
}

// lastWord returns the final whitespace-delimited token of s, stripped of
// leading punctuation like quotes or parens.
func lastWord(s string) string {
	i := len(s)
	for i > 0 && !isSpace(s[i-1]) {
		i--
	}
	word := s[i:]
	return strings.TrimLeft(word, "\"'([{")
}

func appendPart(parts []string, p string) []string {
	if strings.TrimSpace(p) == "" {
		return parts
	}
	return append(parts, p)
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
