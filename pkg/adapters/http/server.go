package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/internal/logging"
	"github.com/aretw0/rxstore/pkg/codec"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds the size of an action envelope.
const maxBodySize = 1 << 20

// Option configures a Server.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for request and stream errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Server exposes a store over HTTP: actions are dispatched through a
// Dispatcher, and the states of an attached stream are served as the latest
// snapshot and as Server-Sent Events.
type Server[S, A any] struct {
	dispatcher *rxstore.Dispatcher[S, A]
	registry   *codec.Registry[A]
	logger     *slog.Logger
	Streams    *StreamManager

	mu       sync.RWMutex
	latest   []byte
	fault    error
	finished bool
	sub      stream.Subscription
}

// NewServer creates a Server. The dispatcher's middleware must be registered
// with the store whose states are attached.
func NewServer[S, A any](dispatcher *rxstore.Dispatcher[S, A], registry *codec.Registry[A], opts ...Option) *Server[S, A] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return &Server[S, A]{
		dispatcher: dispatcher,
		registry:   registry,
		logger:     o.logger,
		Streams:    NewStreamManager(o.logger),
	}
}

// Attach subscribes to states, keeping the activation alive until Close.
// Every state is recorded as the latest snapshot and broadcast to the event
// stream subscribers.
func (s *Server[S, A]) Attach(states stream.Observable[S]) {
	sub := states.Subscribe(stream.Observer[S]{
		Next: func(state S) {
			data, err := json.Marshal(state)
			if err != nil {
				s.logger.Error("Failed to encode state", "err", err)
				return
			}
			s.mu.Lock()
			s.latest = data
			s.mu.Unlock()
			s.Streams.Broadcast(data)
		},
		Error: func(err error) {
			s.logger.Error("Store stopped with a fault", "err", err, "kind", domain.KindOf(err))
			s.mu.Lock()
			s.fault, s.finished = err, true
			s.mu.Unlock()
			s.Streams.Close()
		},
		Complete: func() {
			s.logger.Info("Store completed")
			s.mu.Lock()
			s.finished = true
			s.mu.Unlock()
			s.Streams.Close()
		},
	})

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Close releases the attached subscription and disconnects event streams.
func (s *Server[S, A]) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	s.Streams.Close()
}

// Handler returns the router serving the store API.
func (s *Server[S, A]) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/actions", s.PostAction)
	r.Get("/state", s.GetState)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostAction handles the POST /actions request.
func (s *Server[S, A]) PostAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostAction: Invalid request body", "err", err)
		return
	}

	action, err := s.registry.DecodeJSON(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid action: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostAction: Action rejected", "err", err)
		return
	}

	if err := s.dispatcher.Dispatch(action); err != nil {
		if errors.Is(err, domain.ErrNotActive) {
			http.Error(w, "Store not active", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, fmt.Sprintf("Dispatch error: %v", err), http.StatusInternalServerError)
		s.logger.Error("Dispatch failed", "err", err)
		return
	}

	writeJSON(w, s.logger, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"type":   domain.TypeOf(action),
	})
}

// GetState handles the GET /state request.
func (s *Server[S, A]) GetState(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest, fault := s.latest, s.fault
	s.mu.RUnlock()

	if fault != nil {
		http.Error(w, fmt.Sprintf("Store failed: %v", fault), http.StatusInternalServerError)
		return
	}
	if latest == nil {
		http.Error(w, "No state yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(latest)
}

// GetHealth handles the GET /healthz request.
func (s *Server[S, A]) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fault, finished := s.fault, s.finished
	s.mu.RUnlock()

	resp := map[string]string{"status": "ok"}
	code := http.StatusOK
	switch {
	case fault != nil:
		resp["status"], resp["err"] = "failed", fault.Error()
		code = http.StatusServiceUnavailable
	case finished:
		resp["status"] = "completed"
	}
	writeJSON(w, s.logger, code, resp)
}

// GetInfo handles the GET /info request.
func (s *Server[S, A]) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"app":     "rxstore-http",
		"version": rxstore.Version,
		"actions": s.registry.Types(),
	})
}

// SubscribeEvents handles the GET /events request (SSE). The latest state is
// sent on connect, then every new state as it is folded.
func (s *Server[S, A]) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The latest state, if any, is already queued on ch.
	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: end\ndata: store stopped\n\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
