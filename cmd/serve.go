package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/sells-group/hoa-dossier/internal/pipeline"
	"github.com/sells-group/hoa-dossier/internal/store"
	"github.com/sells-group/hoa-dossier/pkg/geocode"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if deleted, err := env.Neighborhood.Purge(ctx); err != nil {
			zap.L().Warn("neighborhood cache purge failed", zap.Error(err))
		} else if deleted > 0 {
			zap.L().Info("purged expired neighborhood cache entries", zap.Int("deleted", deleted))
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("http server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			zap.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return eris.Wrap(err, "http server")
		}
	},
}

func newRouter(env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Address == "" {
			writeError(w, http.StatusBadRequest, "address is required")
			return
		}

		prepared, err := env.Pipeline.Prepare(req.Context(), pipeline.Request{
			Address: body.Address,
			Name:    body.Name,
		})
		if err != nil {
			if eris.Is(err, geocode.ErrAddressNotResolved) {
				writeError(w, http.StatusUnprocessableEntity, "address could not be resolved")
				return
			}
			zap.L().Error("prepare failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !prepared.Decision.Reanalyze() {
			writeJSON(w, http.StatusOK, map[string]any{
				"decision": prepared.Decision,
				"entity":   prepared.Entity,
			})
			return
		}

		task, err := env.Runner.Start(req.Context(), prepared.Entity, prepared.Decision)
		if err != nil {
			if eris.Is(err, pipeline.ErrAlreadyAnalyzing) {
				writeJSON(w, http.StatusConflict, map[string]any{
					"error":     "entity already analyzing",
					"entity_id": prepared.Entity.ID,
					"detail":    err.Error(),
				})
				return
			}
			zap.L().Error("start task failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"task_id":   task.ID,
			"entity_id": prepared.Entity.ID,
			"decision":  prepared.Decision,
		})
	})

	r.Get("/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		task, err := env.Store.GetTask(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			zap.L().Error("get task failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, task)
	})

	r.Get("/entities/{id}", func(w http.ResponseWriter, req *http.Request) {
		entity, err := env.Store.GetEntity(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "entity not found")
				return
			}
			zap.L().Error("get entity failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, entity)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
