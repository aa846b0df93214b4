package cadence

import (
	"strings"
	"time"
)

// DefaultMaxWords is the word budget per chunk used when the caller passes
// a non-positive value.
const DefaultMaxWords = 10

// Pause durations keyed off a chunk's trailing character. The bare-phrase
// value is a default carried over for short phrases with no recognized
// trailing mark, not a tuned constant.
const (
	clausePause   = 140 * time.Millisecond
	terminalPause = 300 * time.Millisecond
	splitPause    = 160 * time.Millisecond
	barePause     = 180 * time.Millisecond
	finalPauseCap = 220 * time.Millisecond
)

// Chunk is a speakable unit of text paired with the pause to insert after it
// before the next chunk is spoken.
type Chunk struct {
	Text       string
	PauseAfter time.Duration
}

func isTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

func isClause(r rune) bool {
	return r == ',' || r == ';' || r == ':'
}

func isPunct(r rune) bool {
	return isTerminal(r) || isClause(r)
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}

// Normalize prepares raw reply text for segmentation: trims, collapses
// whitespace runs to a single space, folds a literal "..." into an ellipsis
// glyph, and guarantees a space after sentence/clause punctuation. It is
// idempotent.
func Normalize(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	t = strings.ReplaceAll(t, "...", "…")
	t = strings.Join(strings.Fields(t), " ")

	var b strings.Builder
	b.Grow(len(t) + 8)
	runes := []rune(t)
	for i, r := range runes {
		b.WriteRune(r)
		if isPunct(r) && i+1 < len(runes) && runes[i+1] != ' ' {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Segment turns free-form reply text into an ordered sequence of speakable
// chunks with natural inter-chunk pauses. Text is split at terminal
// punctuation (.?!); sentences over the word budget are further split at
// clause punctuation (,;:), then into word groups of at most maxWords.
// Sentence-final punctuation survives word-group splitting. The returned
// slice is freshly computed per call; Segment holds no state and is safe for
// concurrent use.
func Segment(text string, maxWords int) []Chunk {
	t := Normalize(text)
	if t == "" {
		return nil
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	var out []Chunk
	add := func(seg string, pause time.Duration) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, Chunk{Text: seg, PauseAfter: pause})
		}
	}

	for _, sent := range splitKeeping(t, isTerminal) {
		// A sentence that fits the word budget is spoken whole; clause
		// splitting only applies once a sentence overruns it.
		if len(strings.Fields(sent)) <= maxWords {
			switch end := lastRune(sent); {
			case isClause(end):
				add(sent, clausePause)
			case isTerminal(end):
				add(sent, terminalPause)
			default:
				add(sent, barePause)
			}
			continue
		}
		for _, phrase := range splitKeeping(sent, isClause) {
			emitPhrase(phrase, maxWords, add)
		}
	}

	if n := len(out); n > 0 && out[n-1].PauseAfter > finalPauseCap {
		out[n-1].PauseAfter = finalPauseCap
	}
	return out
}

// splitKeeping splits s after every rune matching sep, keeping the separator
// attached to the preceding unit. Trailing unterminated text becomes the
// final unit. Units are trimmed and empty units dropped.
func splitKeeping(s string, sep func(rune) bool) []string {
	var units []string
	var buf strings.Builder
	for _, r := range s {
		buf.WriteRune(r)
		if sep(r) {
			if u := strings.TrimSpace(buf.String()); u != "" {
				units = append(units, u)
			}
			buf.Reset()
		}
	}
	if u := strings.TrimSpace(buf.String()); u != "" {
		units = append(units, u)
	}
	return units
}

func emitPhrase(phrase string, maxWords int, add func(string, time.Duration)) {
	words := strings.Fields(phrase)

	if len(words) <= maxWords {
		switch end := lastRune(phrase); {
		case isClause(end):
			add(phrase, clausePause)
		case isTerminal(end):
			add(phrase, terminalPause)
		default:
			add(phrase, barePause)
		}
		return
	}

	phraseEnd := lastRune(phrase)
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		last := end >= len(words)
		if last {
			end = len(words)
		}
		seg := strings.Join(words[i:end], " ")
		if last && isPunct(phraseEnd) && !isPunct(lastRune(seg)) {
			seg += string(phraseEnd)
		}
		switch segEnd := lastRune(seg); {
		case isClause(segEnd):
			add(seg, clausePause)
		case isTerminal(segEnd):
			add(seg, terminalPause)
		default:
			add(seg, splitPause)
		}
	}
}
