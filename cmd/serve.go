package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vialcheck/vialcheck-cli/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only rankings API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.Serve.Addr
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           apiRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// apiRouter builds the read-only HTTP API.
func apiRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/rankings", func(w http.ResponseWriter, req *http.Request) {
		limit := 0
		if raw := req.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}
		rankings, err := st.LatestGeneration(req.Context(), limit)
		if err != nil {
			serveError(w, "load rankings", err)
			return
		}
		writeJSON(w, http.StatusOK, rankings)
	})

	r.Get("/api/rankings/{vendor}/trend", func(w http.ResponseWriter, req *http.Request) {
		vendor := chi.URLParam(req, "vendor")
		points, err := st.Trend(req.Context(), vendor)
		if err != nil {
			serveError(w, "load trend", err)
			return
		}
		writeJSON(w, http.StatusOK, points)
	})

	r.Get("/api/certificates", func(w http.ResponseWriter, req *http.Request) {
		vendor := req.URL.Query().Get("vendor")
		var (
			certs any
			err   error
		)
		if vendor != "" {
			certs, err = st.GetCertificatesByVendor(req.Context(), vendor)
		} else {
			certs, err = st.GetAllCertificates(req.Context())
		}
		if err != nil {
			serveError(w, "load certificates", err)
			return
		}
		writeJSON(w, http.StatusOK, certs)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("serve: "+action, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
