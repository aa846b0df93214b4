// Package synth is the boundary to the speech-synthesis engine. The engine
// itself is an external collaborator; this package fixes only the contract
// the streaming session handler consumes.
package synth

import "context"

// Request contains parameters to synthesize one cadence chunk.
type Request struct {
	SessionID string
	Text      string
	Voice     string
}

// Chunk carries synthesized PCM16 little-endian audio.
type Chunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer produces audio for a piece of text. Implementations must close
// both channels when done and honor ctx cancellation.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}
