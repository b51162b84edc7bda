package agents

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

// TestSplitter_NoCommaBreak exercises the literal §8 example: a comma inside
// a number must never be treated as a sentence break, and the whole sentence
// is emitted intact at its final period.
func TestSplitter_NoCommaBreak(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	out := s.Feed("We invested $100,000 total.")
	is.Equal(len(out), 1) // the final period is past SentenceBufferPrimaryMin, so Feed emits it
	is.Equal(out[0], "We invested $100,000 total.")

	is.Equal(len(s.Flush()), 0)
}

// TestSplitter_PreservesContentAcrossFeeds exercises "sentence flushing
// preserves content": concatenating every emitted sentence (plus whatever
// Flush returns) reproduces the original text modulo whitespace trimming.
func TestSplitter_PreservesContentAcrossFeeds(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	full := "This is the first sentence of the response. This is the second sentence, it is longer. And a third one follows here."
	var got []string
	for _, chunk := range strings.SplitAfter(full, " ") {
		got = append(got, s.Feed(chunk)...)
	}
	got = append(got, s.Flush()...)

	joined := strings.Join(got, " ")
	is.Equal(strings.Join(strings.Fields(joined), " "), strings.Join(strings.Fields(full), " "))
}

func TestSplitter_ShortPrimaryBreakBelowMinNotSplit(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	// "Hi." ends well before SentenceBufferPrimaryMin, so it must not be
	// emitted as its own sentence; the first break past the minimum is the
	// final period, so the whole text comes out as one sentence.
	out := s.Feed("Hi. More text follows after this short greeting.")
	is.Equal(len(out), 1)
	is.Equal(out[0], "Hi. More text follows after this short greeting.")

	is.Equal(len(s.Flush()), 0)
}

func TestSplitter_PrimaryBreakEmitsPastMinLength(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	first := "This opening sentence is long enough to clear the minimum."
	out := s.Feed(first + " Short next.")
	is.True(len(out) >= 1)
	is.Equal(out[0], first)
}

func TestSplitter_DecimalPointNotTreatedAsBreak(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	out := s.Feed("The measurement came out to 3.14159 exactly as expected here today.")
	for _, sentence := range out {
		is.True(!strings.HasSuffix(sentence, "3.")) // decimal point must not split the number
	}
	rest := s.Flush()
	all := append(out, rest...)
	is.Equal(strings.Join(all, " "), "The measurement came out to 3.14159 exactly as expected here today.")
}

func TestSplitter_AbbreviationNotTreatedAsBreak(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	out := s.Feed("Please ask Dr. Smith about the results when you see him next.")
	out = append(out, s.Flush()...)
	is.Equal(len(out), 1)
	is.Equal(out[0], "Please ask Dr. Smith about the results when you see him next.")
}

func TestSplitter_ForcedFlushOnLongBufferWithoutBreak(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	// No sentence-ending punctuation anywhere, long enough to force a flush
	// at a whitespace boundary rather than buffering indefinitely.
	words := strings.Repeat("word ", 30)
	out := s.Feed(words)
	is.True(len(out) >= 1)

	rest := s.Flush()
	all := append(out, rest...)
	is.Equal(strings.Join(strings.Fields(strings.Join(all, " ")), " "), strings.Join(strings.Fields(words), " "))
}

func TestSplitter_SecondaryBreakUsedWhenNoPrimary(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()

	out := s.Feed("Here is the summary; more detail follows in the next part")
	out = append(out, s.Flush()...)
	is.True(len(out) >= 1)
	is.Equal(strings.Join(out, " "), "Here is the summary; more detail follows in the next part")
}

func TestSplitter_EmptyFlushReturnsNothing(t *testing.T) {
	is := is.New(t)
	s := NewSentenceSplitter()
	is.Equal(len(s.Flush()), 0)
}
