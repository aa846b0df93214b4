// Package audio provides small pure helpers over raw PCM16 buffers:
// silence synthesis for padding and cheap diagnostic statistics.
// Samples are little-endian signed 16-bit throughout.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// DefaultSampleRate is the pipeline's native synthesis rate in Hz.
const DefaultSampleRate = 24000

// statsVisitCap bounds how many samples Stats actually decodes. Large
// buffers are walked at a stride so min/max/RMS become an estimate; buffers
// under the cap are measured exactly.
const statsVisitCap = 4000

// Stats is a snapshot of a PCM16 buffer, intended for debug logging rather
// than signal analysis. Min, Max and RMS cover only the visited samples
// (every Stride-th sample from the start).
type Stats struct {
	SampleCount int
	Min         int16
	Max         int16
	RMS         float64
	ByteCount   int
	Stride      int
	Malformed   bool
}

// Silence returns a buffer of zero-valued PCM16 samples covering d at the
// given rate, or nil when either is non-positive. Allocation is proportional
// to d; bounding absurd durations is the caller's responsibility.
func Silence(d time.Duration, sampleRate int) []byte {
	if d <= 0 || sampleRate <= 0 {
		return nil
	}
	n := int(float64(sampleRate) * d.Seconds())
	if n <= 0 {
		return nil
	}
	return make([]byte, 2*n)
}

// Analyze computes Stats for a PCM16 buffer. An empty buffer yields the zero
// value; an odd-length buffer yields SampleCount 0 with Malformed set. Never
// errors: malformed input is a sentinel result, not a failure.
func Analyze(pcm []byte) Stats {
	if len(pcm) == 0 {
		return Stats{}
	}
	if len(pcm)%2 != 0 {
		return Stats{ByteCount: len(pcm), Malformed: true}
	}

	n := len(pcm) / 2
	stride := n / statsVisitCap
	if stride < 1 {
		stride = 1
	}

	mn := int16(math.MaxInt16)
	mx := int16(math.MinInt16)
	var sumSq float64
	visited := 0
	for i := 0; i < n; i += stride {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
		sumSq += float64(v) * float64(v)
		visited++
	}

	return Stats{
		SampleCount: n,
		Min:         mn,
		Max:         mx,
		RMS:         math.Sqrt(sumSq / float64(visited)),
		ByteCount:   len(pcm),
		Stride:      stride,
	}
}
