// ABOUTME: Assembles an incremental generation stream into ordered protocol
// ABOUTME: frames: periodic status, flushed chunks, one terminal completion.

package stream

import (
	"strings"

	"github.com/socksthoughtshop/parlor/internal/generate"
	"github.com/socksthoughtshop/parlor/internal/protocol"
)

const (
	// defaultFlushLen bounds chunk size when no sentence boundary appears.
	defaultFlushLen = 160
	// defaultStatusEvery is the fragment cadence for status frames.
	defaultStatusEvery = 25

	statusText = "Still working on it..."
)

// Sink receives frames in delivery order.
type Sink func(protocol.Frame)

// Assembler converts a fragment stream for one recipient into bot_message_stream
// frames. Frames for a single response are emitted strictly in order: zero or
// more status/chunk frames, then exactly one completion frame.
type Assembler struct {
	user        string
	send        Sink
	flushLen    int
	statusEvery int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithFlushLen overrides the chunk size threshold.
func WithFlushLen(n int) Option {
	return func(a *Assembler) { a.flushLen = n }
}

// WithStatusEvery overrides the status-frame fragment cadence.
func WithStatusEvery(n int) Option {
	return func(a *Assembler) { a.statusEvery = n }
}

// New creates an assembler emitting frames for the given recipient.
func New(user string, send Sink, opts ...Option) *Assembler {
	a := &Assembler{
		user:        user,
		send:        send,
		flushLen:    defaultFlushLen,
		statusEvery: defaultStatusEvery,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run consumes the stream to completion and returns the full reassembled
// text. On a stream error the partial text and the error are returned and no
// completion frame is emitted; the caller decides the fallback.
func (a *Assembler) Run(chunks <-chan generate.Chunk) (string, error) {
	var full strings.Builder
	var buf strings.Builder
	first := true
	fragments := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		a.send(protocol.New(protocol.TypeBotStream, protocol.BotStream{
			User:    a.user,
			Chunk:   buf.String(),
			IsFirst: first,
		}))
		first = false
		buf.Reset()
	}

	for c := range chunks {
		if c.Err != nil {
			return full.String(), c.Err
		}
		if c.Done {
			break
		}

		fragments++
		buf.WriteString(c.Text)
		full.WriteString(c.Text)

		if endsSentence(c.Text) || buf.Len() >= a.flushLen {
			flush()
		}
		if a.statusEvery > 0 && fragments%a.statusEvery == 0 {
			a.send(protocol.New(protocol.TypeBotStream, protocol.BotStream{
				User:   a.user,
				Status: statusText,
			}))
		}
	}

	flush()
	a.send(protocol.New(protocol.TypeBotStream, protocol.BotStream{
		User:        a.user,
		IsComplete:  true,
		FullMessage: full.String(),
	}))
	return full.String(), nil
}

// Complete emits a single completion frame carrying text that was produced
// without streaming (cache hits and fallbacks).
func (a *Assembler) Complete(text string) {
	a.send(protocol.New(protocol.TypeBotStream, protocol.BotStream{
		User:        a.user,
		Chunk:       text,
		IsFirst:     true,
		IsComplete:  true,
		FullMessage: text,
	}))
}

func endsSentence(s string) bool {
	trimmed := strings.TrimRight(s, " \t")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
