package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tausifislam01/Alyve/internal/auth"
	"github.com/Tausifislam01/Alyve/internal/bus"
	"github.com/Tausifislam01/Alyve/internal/config"
	"github.com/Tausifislam01/Alyve/internal/convstore"
	"github.com/Tausifislam01/Alyve/internal/memory"
	"github.com/Tausifislam01/Alyve/internal/session"
	"github.com/Tausifislam01/Alyve/internal/synth"
)

// Runtime owns the process lifecycle: telemetry, the conversation store, the
// optional bus connection, and the HTTP server hosting health endpoints and
// the voice websocket.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	store, err := convstore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect bus: %w", err)
		}
		defer busClient.Close()
	}

	gateway, err := r.buildGateway(busClient, store)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/ws/voice", gateway.HandleWS)
	mux.HandleFunc("/sessions/", handleSessionHistory(store, r.logger))
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildGateway constructs the session gateway's collaborators explicitly;
// their lifecycle is owned here, not by the components themselves.
func (r *Runtime) buildGateway(busClient *bus.Client, store *convstore.Store) (*session.Gateway, error) {
	var resolver auth.Resolver
	if r.cfg.Auth.JWTSecret != "" {
		resolver = auth.NewJWTResolver(r.cfg.Auth.JWTSecret)
	} else {
		r.logger.Warn("no jwt secret configured, all sessions will be anonymous")
	}
	authenticator := auth.NewAuthenticator(resolver,
		time.Duration(r.cfg.Auth.ResolveTimeout)*time.Millisecond, r.logger)

	var synthesizer synth.Synthesizer
	var err error
	switch r.cfg.Synth.Mode {
	case "exec":
		synthesizer, err = synth.NewExec(r.cfg.Synth.Command, r.cfg.Voice.SampleRate, r.cfg.Voice.Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to build exec synthesizer: %w", err)
		}
	default:
		synthesizer = synth.NewMock(r.cfg.Voice.SampleRate, r.cfg.Voice.Channels)
	}

	var indexer memory.Indexer
	if r.cfg.Memory.Enabled {
		indexer = memory.NewHTTP(r.cfg.Memory.Endpoint, r.cfg.Memory.APIKey,
			time.Duration(r.cfg.Memory.Timeout)*time.Millisecond)
	}

	return session.NewGateway(r.cfg.Voice, r.cfg.Synth.Voice, authenticator,
		synthesizer, busClient, store, indexer, r.logger), nil
}

// handleSessionHistory serves the recorded turns of one session as JSON.
// Ephemeral stores answer with an empty list.
func handleSessionHistory(store *convstore.Store, logger *slog.Logger) http.HandlerFunc {
	type turn struct {
		Role      string    `json:"role"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sessionID := strings.TrimPrefix(req.URL.Path, "/sessions/")
		if sessionID == "" || strings.Contains(sessionID, "/") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		limit := 100
		if raw := req.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		msgs, err := store.ListSessionMessages(req.Context(), sessionID, limit)
		if err != nil {
			logger.Error("failed to list session messages", slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		turns := make([]turn, 0, len(msgs))
		for _, m := range msgs {
			turns = append(turns, turn{Role: m.Role, Text: m.Text, CreatedAt: m.CreatedAt})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(turns)
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
