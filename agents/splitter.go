package agents

import (
	"strings"
	"unicode"

	"github.com/artvoice/turnengine/internal/config"
)

// SentenceSplitter buffers streaming LLM tokens and emits complete sentences
// as soon as a primary break (., !, ?) is seen past
// config.SentenceBufferPrimaryMin characters, or a secondary break (;, :,
// newline) past that minimum when no primary break has arrived, or a forced
// flush once the buffer exceeds config.SentenceBufferForceFlush characters
// (§4.5.1 step 4; §8 "sentence flushing preserves content" / "no comma
// break").
type SentenceSplitter struct {
	buf strings.Builder
}

func NewSentenceSplitter() *SentenceSplitter {
	return &SentenceSplitter{}
}

// Feed appends a content delta and returns zero or more sentences ready to
// dispatch to TTS. Any remainder stays buffered for the next Feed/Flush.
func (s *SentenceSplitter) Feed(delta string) []string {
	s.buf.WriteString(delta)
	return s.drain(false)
}

// Flush forces out whatever remains buffered, called at stream end.
func (s *SentenceSplitter) Flush() []string {
	return s.drain(true)
}

func (s *SentenceSplitter) drain(final bool) []string {
	var out []string
	for {
		text := s.buf.String()
		cut, ok := findBreak(text, final)
		if !ok {
			break
		}
		sentence := strings.TrimSpace(text[:cut])
		if sentence != "" {
			out = append(out, sentence)
		}
		s.buf.Reset()
		s.buf.WriteString(text[cut:])
	}
	if final {
		rest := strings.TrimSpace(s.buf.String())
		if rest != "" {
			out = append(out, rest)
		}
		s.buf.Reset()
	}
	return out
}

// findBreak locates the end of the next emittable sentence in text,
// returning the cut index (exclusive of the break character itself is NOT
// guaranteed — callers trim) and whether a break was found.
func findBreak(text string, final bool) (int, bool) {
	if len(text) == 0 {
		return 0, false
	}

	for i, r := range text {
		if isPrimaryBreak(r) && i+1 >= config.SentenceBufferPrimaryMin {
			if isDecimalPoint(text, i, r) || isAbbreviationDot(text, i, r) {
				continue
			}
			return i + 1, true
		}
	}

	if len(text) >= config.SentenceBufferPrimaryMin {
		for i, r := range text {
			if isSecondaryBreak(r) && i+1 >= config.SentenceBufferPrimaryMin {
				return i + 1, true
			}
		}
	}

	if len(text) >= config.SentenceBufferForceFlush {
		// No break at all within a forced-flush-sized buffer: cut at the
		// last whitespace to avoid splitting mid-word, or hard-cut if none.
		if idx := strings.LastIndexFunc(text, unicode.IsSpace); idx > 0 {
			return idx + 1, true
		}
		return len(text), true
	}

	_ = final
	return 0, false
}

func isPrimaryBreak(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSecondaryBreak(r rune) bool {
	return r == ';' || r == ':' || r == '\n'
}

// isDecimalPoint guards "$100,000.50" / "3.14"-style numeric periods from
// being treated as sentence breaks.
func isDecimalPoint(text string, i int, r rune) bool {
	if r != '.' {
		return false
	}
	if i == 0 || i+1 >= len(text) {
		return false
	}
	return unicode.IsDigit(rune(text[i-1])) && unicode.IsDigit(rune(text[i+1]))
}

// isAbbreviationDot guards common abbreviations ("Mr.", "e.g.") from
// triggering a false sentence break.
func isAbbreviationDot(text string, i int, r rune) bool {
	if r != '.' {
		return false
	}
	prefix := text[:i]
	abbrevs := []string{"Mr", "Mrs", "Ms", "Dr", "vs", "etc", "e.g", "i.e", "Jr", "Sr"}
	for _, a := range abbrevs {
		if strings.HasSuffix(prefix, a) {
			return true
		}
	}
	return false
}
