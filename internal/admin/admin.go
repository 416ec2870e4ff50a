// Package admin exposes the authenticated instance and pair management
// API.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/you/napgram-console/internal/auth"
	"github.com/you/napgram-console/internal/probe"
	"github.com/you/napgram-console/internal/store"
)

// StatusSource reports the last probed liveness for an instance.
type StatusSource interface {
	StatusFor(instanceID int64) probe.Status
}

type Server struct {
	store  *store.Store
	auth   *auth.Authenticator
	status StatusSource
	logger *slog.Logger
}

func New(st *store.Store, a *auth.Authenticator, status StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, auth: a, status: status, logger: logger}
}

// Register mounts the admin routes. Login is open; everything else sits
// behind the session middleware.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/login", s.handleLogin)

	guard := func(h http.HandlerFunc) http.Handler { return s.auth.Middleware(h) }
	mux.Handle("GET /api/admin/instances", guard(s.handleListInstances))
	mux.Handle("POST /api/admin/instances", guard(s.handleCreateInstance))
	mux.Handle("GET /api/admin/instances/{id}", guard(s.handleGetInstance))
	mux.Handle("PUT /api/admin/instances/{id}", guard(s.handleUpdateInstance))
	mux.Handle("DELETE /api/admin/instances/{id}", guard(s.handleDeleteInstance))
	mux.Handle("GET /api/admin/pairs", guard(s.handleListPairs))
	mux.Handle("POST /api/admin/pairs", guard(s.handleCreatePair))
	mux.Handle("GET /api/admin/pairs/{id}", guard(s.handleGetPair))
	mux.Handle("PUT /api/admin/pairs/{id}", guard(s.handleUpdatePair))
	mux.Handle("DELETE /api/admin/pairs/{id}", guard(s.handleDeletePair))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.auth.Verify(body.Password) {
		s.logger.Warn("admin login rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	token, expires, err := s.auth.IssueToken()
	if err != nil {
		s.logger.Error("issue session token", "err", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.store.ListInstances(r.Context())
	if err != nil {
		s.logger.Error("list instances", "err", err)
		writeError(w, http.StatusInternalServerError, "list instances failed")
		return
	}
	for i := range instances {
		instances[i].Status = s.instanceStatus(instances[i].ID)
	}
	if instances == nil {
		instances = []store.Instance{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": instances})
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var inst store.Instance
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if inst.QQBot.Type != "" && inst.QQBot.Type != store.BotTypeOICQ && inst.QQBot.Type != store.BotTypeNapCat {
		writeError(w, http.StatusBadRequest, "unknown bot type: "+inst.QQBot.Type)
		return
	}
	created, err := s.store.CreateInstance(r.Context(), inst)
	if err != nil {
		s.logger.Error("create instance", "err", err)
		writeError(w, http.StatusInternalServerError, "create instance failed")
		return
	}
	created.Status = s.instanceStatus(created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inst, err := s.store.GetInstance(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "get instance")
		return
	}
	inst.Status = s.instanceStatus(inst.ID)
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var inst store.Instance
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	inst.ID = id
	if err := s.store.UpdateInstance(r.Context(), inst); err != nil {
		s.storeError(w, err, "update instance")
		return
	}
	updated, err := s.store.GetInstance(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "get instance")
		return
	}
	updated.Status = s.instanceStatus(updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteInstance(r.Context(), id); err != nil {
		s.storeError(w, err, "delete instance")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	var instanceID int64
	if raw := r.URL.Query().Get("instanceId"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid instanceId")
			return
		}
		instanceID = n
	}
	pairs, err := s.store.ListPairs(r.Context(), instanceID)
	if err != nil {
		s.logger.Error("list pairs", "err", err)
		writeError(w, http.StatusInternalServerError, "list pairs failed")
		return
	}
	if pairs == nil {
		pairs = []store.Pair{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": pairs})
}

func (s *Server) handleCreatePair(w http.ResponseWriter, r *http.Request) {
	var pair store.Pair
	if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if pair.InstanceID <= 0 {
		writeError(w, http.StatusBadRequest, "instanceId is required")
		return
	}
	created, err := s.store.CreatePair(r.Context(), pair)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "instance does not exist")
			return
		}
		s.logger.Error("create pair", "err", err)
		writeError(w, http.StatusInternalServerError, "create pair failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pair, err := s.store.GetPair(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "get pair")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleUpdatePair(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var pair store.Pair
	if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair.ID = id
	if err := s.store.UpdatePair(r.Context(), pair); err != nil {
		s.storeError(w, err, "update pair")
		return
	}
	updated, err := s.store.GetPair(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "get pair")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePair(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeletePair(r.Context(), id); err != nil {
		s.storeError(w, err, "delete pair")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) instanceStatus(id int64) string {
	if s.status == nil {
		return string(probe.StatusUnknown)
	}
	return string(s.status.StatusFor(id))
}

func (s *Server) storeError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error(op, "err", err)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
