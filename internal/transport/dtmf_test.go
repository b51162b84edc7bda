package transport

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/artvoice/turnengine/internal/config"
)

// TestDTMFBuffer_StarClearsBufferedDigits is the literal §8/§6 scenario: the
// caller dials 1, 2, *, 4, # and only "4" is ever emitted — '*' must discard
// what came before it rather than flush it.
func TestDTMFBuffer_StarClearsBufferedDigits(t *testing.T) {
	is := is.New(t)
	var flushed []string
	buf := NewDTMFBuffer(func(text string) { flushed = append(flushed, text) })

	for _, digit := range []string{"1", "2", "*", "4", "#"} {
		buf.Push(digit)
	}

	is.Equal(len(flushed), 1)
	is.Equal(flushed[0], "4")
}

func TestDTMFBuffer_HashFlushesAccumulatedDigits(t *testing.T) {
	is := is.New(t)
	var flushed []string
	buf := NewDTMFBuffer(func(text string) { flushed = append(flushed, text) })

	for _, digit := range []string{"5", "5", "5"} {
		buf.Push(digit)
	}
	buf.Push("#")

	is.Equal(len(flushed), 1)
	is.Equal(flushed[0], "555")
}

func TestDTMFBuffer_StarWithEmptyBufferEmitsNothing(t *testing.T) {
	is := is.New(t)
	var flushed []string
	buf := NewDTMFBuffer(func(text string) { flushed = append(flushed, text) })

	buf.Push("*")
	is.Equal(len(flushed), 0)
}

func TestDTMFBuffer_InactivityTimeoutFlushes(t *testing.T) {
	is := is.New(t)
	var flushed []string
	buf := NewDTMFBuffer(func(text string) { flushed = append(flushed, text) })

	buf.Push("9")
	is.Equal(len(flushed), 0)

	time.Sleep(config.DTMFInactivityTimeout + 200*time.Millisecond)
	is.Equal(len(flushed), 1)
	is.Equal(flushed[0], "9")
}

func TestDTMFBuffer_ExplicitFlushForcesEmission(t *testing.T) {
	is := is.New(t)
	var flushed []string
	buf := NewDTMFBuffer(func(text string) { flushed = append(flushed, text) })

	buf.Push("7")
	buf.Push("8")
	buf.Flush()

	is.Equal(len(flushed), 1)
	is.Equal(flushed[0], "78")
}

func TestDTMFBuffer_FlushOnEmptyBufferEmitsNothing(t *testing.T) {
	is := is.New(t)
	var flushed []string
	buf := NewDTMFBuffer(func(text string) { flushed = append(flushed, text) })

	buf.Flush()
	is.Equal(len(flushed), 0)
}
