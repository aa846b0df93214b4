package synth

import (
	"context"
	"strings"
	"time"

	"github.com/Tausifislam01/Alyve/internal/audio"
)

// perWordDuration sizes mock output so streamed byte counts scale with the
// text like a real engine's would.
const perWordDuration = 60 * time.Millisecond

type mockSynth struct {
	sampleRate int
	channels   int
}

// NewMock returns a Synthesizer that emits a single silence chunk sized to
// the word count of the request.
func NewMock(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		if err := ctx.Err(); err != nil {
			errs <- err
			return
		}

		words := len(strings.Fields(req.Text))
		if words == 0 {
			words = 1
		}
		chunks <- Chunk{
			SessionID:  req.SessionID,
			SampleRate: m.sampleRate,
			Channels:   m.channels,
			PCM:        audio.Silence(time.Duration(words)*perWordDuration, m.sampleRate),
			Final:      true,
		}
	}()
	return chunks, errs
}
