package synth

import (
	"context"
	"testing"
)

func TestMockSynthEmitsSilenceSizedToText(t *testing.T) {
	s := NewMock(24000, 1)
	chunks, errs := s.Synthesize(context.Background(), Request{SessionID: "s1", Text: "hello world"})

	var got []Chunk
	for c := range chunks {
		got = append(got, c)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if !got[0].Final {
		t.Fatal("expected final chunk")
	}
	// 2 words * 60ms at 24kHz mono PCM16.
	if want := 2 * 2880; len(got[0].PCM) != want {
		t.Fatalf("PCM length = %d, want %d", len(got[0].PCM), want)
	}
	if got[0].SampleRate != 24000 || got[0].Channels != 1 {
		t.Fatalf("unexpected format: %+v", got[0])
	}
}

func TestMockSynthHonorsCancellation(t *testing.T) {
	s := NewMock(24000, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunks, errs := s.Synthesize(ctx, Request{SessionID: "s1", Text: "hello"})
	for range chunks {
	}
	if err := <-errs; err == nil {
		t.Fatal("expected context error after cancellation")
	}
}
