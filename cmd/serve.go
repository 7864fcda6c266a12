package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/collab"
	"github.com/sells-group/biblio-cli/internal/model"
	"github.com/sells-group/biblio-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for processing and collaborative editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(5 * time.Minute))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/process", func(w http.ResponseWriter, req *http.Request) {
			var state model.ReferenceState
			if err := json.NewDecoder(req.Body).Decode(&state); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			result, err := e.Pipeline.Process(req.Context(), state)
			if err != nil {
				if eris.Is(err, pipeline.ErrInvalidInput) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				zap.L().Error("process request failed",
					zap.String("study_id", state.StudyID),
					zap.Error(err),
				)
				writeError(w, http.StatusInternalServerError, "processing failed")
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Post("/validate", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				DOIs []string `json:"dois"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.DOIs) == 0 {
				writeError(w, http.StatusBadRequest, "dois is required")
				return
			}
			results, err := e.Validator.ValidateBatch(req.Context(), body.DOIs)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "validation failed")
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					EditorID string `json:"editor_id"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.EditorID == "" {
					writeError(w, http.StatusBadRequest, "editor_id is required")
					return
				}
				id := e.Coordinator.CreateSession(req.Context(), body.EditorID)
				writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
			})

			r.Post("/{id}/join", sessionAction(func(req *http.Request, id, editor string) error {
				return e.Coordinator.JoinSession(req.Context(), id, editor)
			}))
			r.Post("/{id}/leave", sessionAction(func(req *http.Request, id, editor string) error {
				return e.Coordinator.LeaveSession(req.Context(), id, editor)
			}))

			r.Post("/{id}/locks", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					ReferenceID string `json:"reference_id"`
					EditorID    string `json:"editor_id"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
				err := e.Coordinator.RequestLock(req.Context(), chi.URLParam(req, "id"), body.ReferenceID, body.EditorID)
				if err != nil {
					writeError(w, lockStatus(err), err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
			})

			r.Delete("/{id}/locks", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					ReferenceID string `json:"reference_id"`
					EditorID    string `json:"editor_id"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
				err := e.Coordinator.ReleaseLock(req.Context(), chi.URLParam(req, "id"), body.ReferenceID, body.EditorID)
				if err != nil {
					writeError(w, lockStatus(err), err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
			})

			r.Post("/{id}/edits", func(w http.ResponseWriter, req *http.Request) {
				var edit model.ReferenceEdit
				if err := json.NewDecoder(req.Body).Decode(&edit); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
				resolution, err := e.Coordinator.SubmitEdit(req.Context(), chi.URLParam(req, "id"), edit)
				if err != nil {
					writeError(w, lockStatus(err), err.Error())
					return
				}
				status := http.StatusOK
				if resolution != nil && resolution.RequiresManualResolution {
					status = http.StatusConflict
				}
				writeJSON(w, status, map[string]any{
					"status":     "accepted",
					"resolution": resolution,
				})
			})

			r.Get("/{id}/history", func(w http.ResponseWriter, req *http.Request) {
				history, err := e.Coordinator.History(chi.URLParam(req, "id"))
				if err != nil {
					writeError(w, http.StatusNotFound, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, history)
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already cancelled; drain in-flight
			// requests on a fresh deadline instead.
			drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			srv.Shutdown(drainCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// sessionAction adapts join/leave handlers sharing the editor_id body.
func sessionAction(fn func(req *http.Request, sessionID, editorID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			EditorID string `json:"editor_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.EditorID == "" {
			writeError(w, http.StatusBadRequest, "editor_id is required")
			return
		}
		if err := fn(req, chi.URLParam(req, "id"), body.EditorID); err != nil {
			writeError(w, lockStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// lockStatus maps coordinator errors onto HTTP statuses.
func lockStatus(err error) int {
	switch {
	case eris.Is(err, collab.ErrNoSession):
		return http.StatusNotFound
	case eris.Is(err, collab.ErrLockHeld), eris.Is(err, collab.ErrNotLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
