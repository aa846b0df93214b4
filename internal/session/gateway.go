// Package session drives a streaming voice connection: it authenticates the
// websocket before any audio flows, segments each reply turn into cadence
// chunks, and paces synthesized PCM frames down the socket with the
// segmenter's pauses between them.
package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tausifislam01/Alyve/internal/audio"
	"github.com/Tausifislam01/Alyve/internal/auth"
	"github.com/Tausifislam01/Alyve/internal/bus"
	"github.com/Tausifislam01/Alyve/internal/cadence"
	"github.com/Tausifislam01/Alyve/internal/config"
	"github.com/Tausifislam01/Alyve/internal/convstore"
	"github.com/Tausifislam01/Alyve/internal/memory"
	"github.com/Tausifislam01/Alyve/internal/protocol"
	"github.com/Tausifislam01/Alyve/internal/synth"
)

// synthTimeout bounds synthesis of a single cadence chunk.
const synthTimeout = 45 * time.Second

// anonymousProfileID is the memory-index profile key for sessions without a
// resolved principal.
const anonymousProfileID = "default"

// Gateway accepts voice websocket connections. Each connection runs
// independently and owns its identity, segmentation state, and buffers;
// there is no shared mutable state between sessions.
type Gateway struct {
	cfg      config.VoiceConfig
	voice    string
	auth     *auth.Authenticator
	synth    synth.Synthesizer
	bus      *bus.Client
	store    *convstore.Store
	memory   memory.Indexer
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewGateway wires the gateway's collaborators. busClient and store may be
// nil; indexer may be nil, in which case memories are accepted but not
// indexed.
func NewGateway(cfg config.VoiceConfig, defaultVoice string, authn *auth.Authenticator, synthesizer synth.Synthesizer, busClient *bus.Client, store *convstore.Store, indexer memory.Indexer, log *slog.Logger) *Gateway {
	if indexer == nil {
		indexer = memory.NewNoop()
	}
	return &Gateway{
		cfg:    cfg,
		voice:  defaultVoice,
		auth:   authn,
		synth:  synthesizer,
		bus:    busClient,
		store:  store,
		memory: indexer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: log.With(slog.String("component", "session")),
	}
}

// HandleWS is the websocket entry point. Identity is resolved from the
// request query string before the upgrade; resolution failures degrade to
// anonymous and never reject the connection.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity := g.auth.Authenticate(r.Context(), r.URL.RawQuery)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sessionID := uuid.NewString()
	c := &conversation{
		g:        g,
		conn:     conn,
		id:       sessionID,
		identity: identity,
		log: g.logger.With(
			slog.String("session_id", sessionID),
			slog.Bool("anonymous", identity.Anonymous),
		),
	}
	c.run(auth.WithIdentity(r.Context(), identity))
}

// conversation is the per-connection state. Reads and writes both happen on
// the run goroutine, so chunk ordering is preserved by construction and a
// slow transport applies backpressure instead of dropping frames.
type conversation struct {
	g        *Gateway
	conn     *websocket.Conn
	id       string
	identity auth.Identity
	log      *slog.Logger
}

func (c *conversation) run(ctx context.Context) {
	defer c.conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.g.store != nil {
		if err := c.g.store.AppendSession(ctx, c.id, c.identity.Subject, c.identity.Anonymous); err != nil {
			c.log.Warn("failed to record session", slog.String("error", err.Error()))
		}
	}

	ready := protocol.ServerMessage{
		Type:       protocol.ServerReady,
		SessionID:  c.id,
		Principal:  c.identity.Subject,
		Anonymous:  c.identity.Anonymous,
		SampleRate: c.g.cfg.SampleRate,
		Channels:   c.g.cfg.Channels,
	}
	if err := c.conn.WriteJSON(ready); err != nil {
		c.log.Warn("failed to send ready", slog.String("error", err.Error()))
		return
	}
	c.log.Info("session started")

	for {
		var msg protocol.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("connection read failed", slog.String("error", err.Error()))
			} else {
				c.log.Info("session closed")
			}
			return
		}

		switch msg.Type {
		case protocol.ClientSay:
			if err := c.streamTurn(ctx, msg); err != nil {
				c.log.Warn("turn aborted", slog.String("error", err.Error()))
				if c.sendError(fmt.Sprintf("turn failed: %v", err)) != nil {
					return
				}
			}
		case protocol.ClientHeard:
			c.recordTurn(ctx, "user", msg.Text)
		case protocol.ClientRemember:
			if c.handleRemember(ctx, msg) != nil {
				return
			}
		case protocol.ClientBye:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			c.log.Info("session closed")
			return
		default:
			if c.sendError("unknown message type: "+msg.Type) != nil {
				return
			}
		}
	}
}

// streamTurn runs the reply pipeline for one turn: segment the text, then
// for each chunk in order synthesize, stream the PCM, and sleep the chunk's
// pause before advancing. Chunks are never reordered or skipped; closing the
// connection mid-turn abandons the remainder.
func (c *conversation) streamTurn(ctx context.Context, msg protocol.ClientMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return c.sendJSON(protocol.ServerMessage{Type: protocol.ServerTurnDone, SessionID: c.id})
	}

	c.recordTurn(ctx, "reply", text)

	chunks := cadence.Segment(text, c.g.cfg.MaxWordsPerChunk)
	if len(chunks) == 0 {
		return c.sendJSON(protocol.ServerMessage{Type: protocol.ServerTurnDone, SessionID: c.id})
	}

	if lead := time.Duration(c.g.cfg.LeadInMS) * time.Millisecond; lead > 0 {
		pad := audio.Silence(lead, c.g.cfg.SampleRate)
		if err := c.conn.WriteMessage(websocket.BinaryMessage, pad); err != nil {
			return fmt.Errorf("write lead-in: %w", err)
		}
	}

	voice := msg.Voice
	if voice == "" {
		voice = c.g.voice
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := protocol.ServerMessage{
			Type:       protocol.ServerChunkStart,
			SessionID:  c.id,
			Seq:        i,
			Text:       chunk.Text,
			PauseMS:    int(chunk.PauseAfter / time.Millisecond),
			SampleRate: c.g.cfg.SampleRate,
			Channels:   c.g.cfg.Channels,
		}
		if err := c.sendJSON(start); err != nil {
			return err
		}
		if err := c.streamChunk(ctx, i, chunk.Text, voice); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(chunk.PauseAfter):
		}
	}

	return c.sendJSON(protocol.ServerMessage{Type: protocol.ServerTurnDone, SessionID: c.id})
}

func (c *conversation) streamChunk(ctx context.Context, seq int, text, voice string) error {
	sctx, cancel := context.WithTimeout(ctx, synthTimeout)
	defer cancel()

	frames, errs := c.g.synth.Synthesize(sctx, synth.Request{SessionID: c.id, Text: text, Voice: voice})
	logStats := c.g.cfg.Debug
	for frames != nil || errs != nil {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if logStats {
				st := audio.Analyze(frame.PCM)
				c.log.Debug("chunk pcm stats",
					slog.Int("seq", seq),
					slog.Int("samples", st.SampleCount),
					slog.Int("min", int(st.Min)),
					slog.Int("max", int(st.Max)),
					slog.Float64("rms", st.RMS),
					slog.Int("stride", st.Stride),
					slog.Bool("malformed", st.Malformed),
				)
				logStats = false
			}
			if len(frame.PCM) > 0 {
				if err := c.conn.WriteMessage(websocket.BinaryMessage, frame.PCM); err != nil {
					return fmt.Errorf("write audio frame: %w", err)
				}
			}
		case err, ok := <-errs:
			if ok && err != nil {
				return fmt.Errorf("synthesize chunk %d: %w", seq, err)
			}
			errs = nil
		case <-sctx.Done():
			return sctx.Err()
		}
	}
	return nil
}

func (c *conversation) handleRemember(ctx context.Context, msg protocol.ClientMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.LovedOneID == 0 {
		return c.sendError("remember requires loved_one_id and text")
	}

	c.recordTurn(ctx, "memory", text)

	raw := uuid.New()
	memoryID := hex.EncodeToString(raw[:])

	profileID := c.identity.Subject
	if c.identity.Anonymous {
		profileID = anonymousProfileID
	}

	indexed, err := c.g.memory.AddMemory(ctx, profileID, msg.LovedOneID, text, memoryID)
	if err != nil {
		c.log.Warn("memory indexing failed", slog.String("error", err.Error()))
		return c.sendError("memory indexing failed")
	}

	return c.sendJSON(protocol.ServerMessage{
		Type:       protocol.ServerMemorySaved,
		SessionID:  c.id,
		MemoryID:   memoryID,
		IndexedIDs: indexed,
	})
}

// recordTurn persists a turn and fans it out on the bus. Both sinks are
// best-effort; failures never interrupt the audio stream.
func (c *conversation) recordTurn(ctx context.Context, role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if c.g.store != nil {
		if err := c.g.store.AppendMessage(ctx, c.id, role, text); err != nil {
			c.log.Warn("failed to record turn", slog.String("role", role), slog.String("error", err.Error()))
		}
	}
	if c.g.bus != nil && c.g.bus.Healthy() {
		subject := protocol.SubjectTurnReply
		if role == "user" {
			subject = protocol.SubjectTurnUser
		}
		event := protocol.TurnEvent{
			SessionID: c.id,
			Principal: c.identity.Subject,
			Anonymous: c.identity.Anonymous,
			Role:      role,
			Text:      text,
			Timestamp: time.Now().UTC(),
		}
		if err := c.g.bus.PublishJSON(subject, event); err != nil {
			c.log.Warn("failed to publish turn event", slog.String("error", err.Error()))
		}
	}
}

func (c *conversation) sendJSON(msg protocol.ServerMessage) error {
	return c.conn.WriteJSON(msg)
}

func (c *conversation) sendError(message string) error {
	return c.sendJSON(protocol.ServerMessage{
		Type:      protocol.ServerError,
		SessionID: c.id,
		Error:     message,
	})
}
