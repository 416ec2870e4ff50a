// Package httpapi serves the merged message viewer: JSON transcripts,
// server-rendered viewer pages, the avatar proxy, and the usual
// operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/you/napgram-console/internal/core"
	"github.com/you/napgram-console/internal/transcript"
)

// AvatarProxy passes one sender's avatar through to the response.
type AvatarProxy interface {
	ServeAvatar(ctx context.Context, w http.ResponseWriter, senderID string)
}

// BuildInfo describes the compiled binary.
type BuildInfo struct {
	Version  string
	Revision string
	BuiltAt  time.Time
}

type Options struct {
	Addr           string
	Build          BuildInfo
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	assembler  *transcript.Assembler
	avatars    AvatarProxy
	metrics    *Metrics
	limiter    *ipRateLimiter
	cors       *corsPolicy
	logger     *slog.Logger
	opts       Options
}

func New(assembler *transcript.Assembler, avatars AvatarProxy, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		assembler: assembler,
		avatars:   avatars,
		metrics:   newMetrics(),
		limiter:   newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cors:      newCORSPolicy(opts.CORSOrigins),
		logger:    logger,
		opts:      opts,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", srv.wrap("healthz", http.HandlerFunc(srv.handleHealthz)))
	mux.Handle("GET /api/info", srv.wrap("info", http.HandlerFunc(srv.handleInfo)))
	mux.Handle("GET /metrics", srv.metrics.Handler())
	mux.Handle("GET /api/transcript/{uuid}", srv.wrap("transcript", http.HandlerFunc(srv.handleTranscript)))
	mux.Handle("GET /api/avatar/qq/{id}", srv.wrap("avatar", http.HandlerFunc(srv.handleAvatar)))
	mux.Handle("GET /ui/merged/{uuid}", srv.wrap("ui_merged", http.HandlerFunc(srv.handleMergedPage)))
	mux.Handle("GET /ui/chatRecord", srv.wrap("ui_chat_record", http.HandlerFunc(srv.handleChatRecordPage)))
	srv.mux = mux

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Mux exposes the underlying mux so additional route groups (the admin
// API) can be mounted before Start.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// wrap applies the shared middleware stack: rate limiting, CORS, gzip,
// and access logging with metrics.
func (s *Server) wrap(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if !s.limiter.Allow(remoteIP(r)) {
			s.metrics.IncRateLimited()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		if handled, status := s.cors.handlePreflight(w, r); handled {
			s.metrics.ObserveRequest(route, r.Method, status, time.Since(start), 0)
			return
		}
		if !s.cors.applyHeaders(w, r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		rec := newResponseRecorder(w)
		if gz, ok := maybeGzip(rec, r); ok {
			defer gz.Close()
		}

		next.ServeHTTP(rec, r)

		dur := time.Since(start)
		s.metrics.ObserveRequest(route, r.Method, rec.Status(), dur, rec.Bytes())
		s.logger.Info("http request",
			"route", route,
			"method", r.Method,
			"status", rec.Status(),
			"bytes", rec.Bytes(),
			"dur", dur,
			"remote", remoteIP(r))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type infoResponse struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Revision string `json:"rev"`
	BuiltAt  string `json:"built_at,omitempty"`
	Go       string `json:"go"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	resp := infoResponse{
		Service:  "napgram-console",
		Version:  s.opts.Build.Version,
		Revision: s.opts.Build.Revision,
		Go:       runtime.Version(),
	}
	if !s.opts.Build.BuiltAt.IsZero() {
		resp.BuiltAt = s.opts.Build.BuiltAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// transcriptMessage is the wire shape of one rendered message. Time is a
// pointer so records without a timestamp omit the field entirely.
type transcriptMessage struct {
	SenderID    string           `json:"senderId"`
	DisplayName string           `json:"displayName"`
	AvatarURL   string           `json:"avatarUrl,omitempty"`
	Time        *float64         `json:"time,omitempty"`
	Units       []core.Unit      `json:"units"`
	Scheme      core.ColorScheme `json:"scheme"`
}

type transcriptResponse struct {
	Identifier string              `json:"identifier"`
	State      string              `json:"state"`
	Error      string              `json:"error,omitempty"`
	Messages   []transcriptMessage `json:"messages,omitempty"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	uuid := strings.TrimSpace(r.PathValue("uuid"))
	if uuid == "" {
		writeJSONError(w, http.StatusBadRequest, "missing identifier")
		return
	}

	snap, err := s.assembler.View(r.Context(), uuid)
	if err != nil {
		s.metrics.IncTranscriptFetch("timeout")
		writeJSONError(w, http.StatusGatewayTimeout, "transcript request timed out")
		return
	}
	if snap.Identifier != uuid {
		// superseded by a newer identifier while waiting; a retry settles
		s.metrics.IncTranscriptFetch("superseded")
		writeJSON(w, http.StatusOK, transcriptResponse{Identifier: uuid, State: transcript.StateLoading.String()})
		return
	}

	resp := transcriptResponse{Identifier: uuid, State: snap.State.String()}
	switch snap.State {
	case transcript.StateError:
		s.metrics.IncTranscriptFetch("error")
		resp.Error = snap.Err
		writeJSON(w, http.StatusBadGateway, resp)
	case transcript.StateReady:
		s.metrics.IncTranscriptFetch("ready")
		resp.Messages = make([]transcriptMessage, 0, len(snap.Transcript))
		for _, rendered := range snap.Transcript {
			msg := transcriptMessage{
				SenderID:    rendered.Message.SenderID,
				DisplayName: rendered.Message.DisplayName,
				AvatarURL:   rendered.Message.AvatarURL,
				Units:       rendered.Units,
				Scheme:      rendered.Scheme,
			}
			if rendered.Message.HasTime {
				t := rendered.Message.Time
				msg.Time = &t
			}
			resp.Messages = append(resp.Messages, msg)
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	s.metrics.IncAvatarRequests()
	s.avatars.ServeAvatar(r.Context(), w, id)
}

func (s *Server) handleMergedPage(w http.ResponseWriter, r *http.Request) {
	uuid := strings.TrimSpace(r.PathValue("uuid"))
	if uuid == "" {
		http.Error(w, "missing identifier", http.StatusBadRequest)
		return
	}
	s.servePage(w, r, uuid)
}

func (s *Server) handleChatRecordPage(w http.ResponseWriter, r *http.Request) {
	identifier, ok := IdentifierFromQuery(r.URL.Query())
	if !ok {
		http.Error(w, "missing identifier", http.StatusBadRequest)
		return
	}
	s.servePage(w, r, identifier)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, identifier string) {
	snap, err := s.assembler.View(r.Context(), identifier)
	if err != nil {
		http.Error(w, "transcript request timed out", http.StatusGatewayTimeout)
		return
	}
	renderPage(w, buildPage(identifier, snap))
}

func (s *Server) Start() error {
	s.logger.Info("http api listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
