package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"hazlabel/internal/auth"
	"hazlabel/internal/database"
	"hazlabel/internal/export"
	"hazlabel/internal/pipeline"
	"hazlabel/internal/stream"
	"hazlabel/internal/ws"
)

type serverDeps struct {
	controller *pipeline.Controller
	recorder   *database.Recorder
	exporter   *export.Exporter
	hub        *ws.Hub
	preview    *stream.MJPEGStream
	auth       *auth.Authenticator
	source     string
	detector   string
	logger     *log.Logger
}

// server exposes the control API. Lifecycle endpoints also drive the run
// recorder so persisted runs line up with pipeline starts and stops.
type server struct {
	serverDeps
	http *http.Server
}

func newServer(deps serverDeps) *server {
	s := &server{serverDeps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/pipeline/start", s.handleStart)
	api.HandleFunc("POST /api/pipeline/stop", s.handleStop)
	api.HandleFunc("POST /api/pipeline/pause", s.handlePause)
	api.HandleFunc("POST /api/pipeline/resume", s.handleResume)
	api.HandleFunc("GET /api/pipeline/config", s.handleGetConfig)
	api.HandleFunc("PUT /api/pipeline/config", s.handleUpdateConfig)
	api.HandleFunc("GET /api/pipeline/stats", s.handleStats)
	api.HandleFunc("GET /api/results", s.handleResults)
	api.HandleFunc("GET /api/results/history", s.handleHistory)
	api.HandleFunc("POST /api/export", s.handleExport)
	api.HandleFunc("POST /api/screenshot", s.handleScreenshot)
	api.Handle("GET /ws/detections", ws.NewHandler(deps.hub))
	api.Handle("GET /stream/mjpeg", deps.preview)
	api.Handle("GET /stream/snapshot", stream.NewSnapshotHandler(deps.preview))

	mux.Handle("/", auth.Middleware(deps.auth, api))

	s.http = &http.Server{Handler: mux}
	return s
}

// ListenAndServe blocks serving the control API.
func (s *server) ListenAndServe(addr string) error {
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Printf("http shutdown: %v", err)
	}
}

// startPipeline starts the controller and, when persistence is configured,
// opens a run record.
func (s *server) startPipeline() error {
	if err := s.controller.Start(context.Background()); err != nil {
		return err
	}
	s.hub.BroadcastState(ws.NewStateMessage(s.controller.State()))
	if s.recorder != nil {
		if _, err := s.recorder.StartRun(s.controller.Bus(), s.source, s.detector); err != nil {
			s.logger.Printf("run recording unavailable: %v", err)
		}
	}
	return nil
}

// stopPipeline stops the controller and closes out the run record. Counters
// are read after Stop returns so frames processed during teardown are
// included.
func (s *server) stopPipeline() error {
	err := s.controller.Stop()
	s.hub.BroadcastState(ws.NewStateMessage(s.controller.State()))
	if s.recorder != nil {
		stats := s.controller.Stats()
		if rerr := s.recorder.StopRun(int64(stats.FramesProcessed), int64(stats.FramesDropped)); rerr != nil {
			s.logger.Printf("run close failed: %v", rerr)
		}
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthDisabled) {
			writeError(w, http.StatusNotFound, "authentication is disabled")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.startPipeline(); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			writeJSON(w, http.StatusConflict, map[string]string{
				"message": "pipeline is not stopped",
				"state":   string(s.controller.State()),
			})
		case errors.Is(err, pipeline.ErrOpenFailure):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Stats())
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.stopPipeline(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Stats())
}

func (s *server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Pause(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"message": "pipeline is not running",
			"state":   string(s.controller.State()),
		})
		return
	}
	s.hub.BroadcastState(ws.NewStateMessage(s.controller.State()))
	writeJSON(w, http.StatusOK, s.controller.Stats())
}

func (s *server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Resume(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"message": "pipeline is not paused",
			"state":   string(s.controller.State()),
		})
		return
	}
	s.hub.BroadcastState(ws.NewStateMessage(s.controller.State()))
	writeJSON(w, http.StatusOK, s.controller.Stats())
}

func (s *server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Config())
}

func (s *server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg pipeline.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.controller.UpdateConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Config())
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Stats())
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	seq, detections := s.controller.Aggregator().Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"frame_seq":  seq,
		"detections": detections,
	})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Aggregator().History())
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	path, err := s.exporter.WriteCSV(s.controller.Aggregator().History())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Printf("exported detections to %s", path)
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	path, err := s.exporter.WriteScreenshot(s.preview.CurrentFrame())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Printf("saved screenshot to %s", path)
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}
