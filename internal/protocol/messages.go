// Package protocol defines the JSON envelopes exchanged over a voice
// websocket and the bus subjects used for turn fanout. Binary websocket
// messages carry raw PCM16 little-endian audio and are not enveloped.
package protocol

import "time"

// Client message types.
const (
	ClientSay      = "say"      // reply text to segment and stream as audio
	ClientHeard    = "heard"    // user-side transcript, recorded only
	ClientRemember = "remember" // new fact to index into long-term memory
	ClientBye      = "bye"
)

// ClientMessage is a text frame from the connection's driver.
type ClientMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Voice      string `json:"voice,omitempty"`
	LovedOneID int64  `json:"loved_one_id,omitempty"`
}

// Server message types.
const (
	ServerReady       = "ready"
	ServerChunkStart  = "chunk_start"
	ServerTurnDone    = "turn_done"
	ServerMemorySaved = "memory_saved"
	ServerError       = "error"
)

// ServerMessage is a text frame sent to the connection's driver. Binary PCM
// frames for a chunk follow its chunk_start envelope.
type ServerMessage struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id,omitempty"`
	Seq        int      `json:"seq,omitempty"`
	Text       string   `json:"text,omitempty"`
	PauseMS    int      `json:"pause_ms,omitempty"`
	SampleRate int      `json:"sample_rate,omitempty"`
	Channels   int      `json:"channels,omitempty"`
	Principal  string   `json:"principal,omitempty"`
	Anonymous  bool     `json:"anonymous,omitempty"`
	MemoryID   string   `json:"memory_id,omitempty"`
	IndexedIDs []string `json:"indexed_ids,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Bus subjects for conversation turn events.
const (
	SubjectTurnUser  = "voice.turn.user"
	SubjectTurnReply = "voice.turn.reply"
)

// TurnEvent is published on the bus for each recorded conversation turn.
type TurnEvent struct {
	SessionID string    `json:"session_id"`
	Principal string    `json:"principal,omitempty"`
	Anonymous bool      `json:"anonymous"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
