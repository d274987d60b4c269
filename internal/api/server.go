package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"downshot/pkg/logging"
	"downshot/pkg/version"
)

// Handlers groups the endpoint handlers served by NewServer. A nil handler
// leaves its routes unregistered.
type Handlers struct {
	Telemetry *TelemetryHandler
	Mission   *MissionHandler
	History   *HistoryHandler
	Map       *MapHandler
	Log       *LogHandler
	Video     *VideoHandler
	Config    *ConfigHandler
	Stats     *StatsHandler
}

// NewServer creates and configures the HTTP server.
// shutdown is invoked asynchronously by POST /api/shutdown.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(NewMux(h, shutdown)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers every route on a fresh ServeMux.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health + Version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Telemetry
	if h.Telemetry != nil {
		mux.HandleFunc("GET /api/telemetry", h.Telemetry.HandleTelemetry)
	}

	// 3. Mission control
	if h.Mission != nil {
		mux.HandleFunc("GET /api/mission", h.Mission.HandleStatus)
		mux.HandleFunc("POST /api/mission/target", h.Mission.HandleSetTarget)
		mux.HandleFunc("POST /api/mission/start", h.Mission.HandleStart)
		mux.HandleFunc("POST /api/mission/reset", h.Mission.HandleReset)
	}

	// 4. Mission history
	if h.History != nil {
		mux.HandleFunc("GET /api/missions", h.History.HandleList)
		mux.HandleFunc("GET /api/missions/{id}", h.History.HandleGet)
	}

	// 5. Map surface
	if h.Map != nil {
		mux.HandleFunc("GET /api/map", h.Map.HandleMap)
		mux.HandleFunc("DELETE /api/map/trail", h.Map.HandleResetTrail)
	}

	// 6. Journal
	if h.Log != nil {
		mux.HandleFunc("GET /api/log", h.Log.HandleList)
		mux.HandleFunc("GET /api/log/latest", h.Log.HandleLatest)
		mux.HandleFunc("DELETE /api/log", h.Log.HandleClear)
	}

	// 7. Video
	if h.Video != nil {
		mux.HandleFunc("GET /api/video", h.Video.HandleBinding)
		mux.Handle("GET /api/video/stream", h.Video.Stream())
	}

	// 8. Config + Stats
	if h.Config != nil {
		mux.HandleFunc("/api/config", h.Config.HandleConfig)
	}
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}

	// 9. Shutdown
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError renders {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
