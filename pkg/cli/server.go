package cli

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/recolab/reco/pkg/data"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080
)

var (
	portFlag = &cli.IntFlag{
		Name:     "port",
		Usage:    "Port on which the server will listen",
		Value:    serverPortDefault,
		Required: false,
	}

	serverCmd = &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP API",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			portFlag,
			debugFlag,
		},
	}
)

func cmdStartServer(c *cli.Context) error {
	cfg := getConfig(c)
	port := c.Int(portFlag.Name)
	address := fmt.Sprintf("127.0.0.1:%d", port)

	mux := makeRouter(cfg)
	s := &http.Server{
		Addr:           address,
		Handler:        mux,
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("error starting server", "error", err)
		}
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address))
	if getAPIKey() != "" {
		slog.Info("API key configured, requests require a bearer token")
	}

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

func makeRouter(cfg *appConfig) *http.ServeMux {
	key := getAPIKey()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /recommend", withAuth(key, recommendAPIHandler(cfg)))
	mux.HandleFunc("GET /items/search", withAuth(key, itemSearchAPIHandler(cfg.DB)))
	mux.HandleFunc("GET /stats", withAuth(key, statsAPIHandler(cfg.DB)))

	return mux
}

// withAuth enforces the stored API key when one is configured. Without a
// key the API stays open, it only listens on loopback.
func withAuth(key string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key == "" {
			next(w, r)
			return
		}

		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	}
}

func recommendAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		users := r.URL.Query()["user"]
		if len(users) == 0 {
			writeError(w, http.StatusBadRequest, "at least one user parameter is required")
			return
		}

		limit := queryParamInt(r, "limit", cfg.Conf.Limit)

		ranked, err := recommend(r.Context(), cfg, users, limit)
		if err != nil {
			slog.Error("failed to recommend", "users", strings.Join(users, ","), "error", err)
			writeError(w, http.StatusInternalServerError, "failed to score candidates")
			return
		}

		writeJSON(w, http.StatusOK, &RecommendResult{
			Users:           users,
			Count:           len(ranked),
			Duration:        time.Since(start).String(),
			Recommendations: ranked,
		})
	}
}

func itemSearchAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "q parameter is required")
			return
		}

		limit := queryParamInt(r, "limit", queryResultLimitDefault)

		list, err := data.SearchItems(db, q, limit)
		if err != nil {
			slog.Error("failed to search items", "q", q, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to search items")
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

type Stats struct {
	Items        int64            `json:"items"`
	Interactions int64            `json:"interactions"`
	Users        int64            `json:"users"`
	Kinds        map[string]int64 `json:"kinds,omitempty"`
}

func statsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := data.CountItems(db)
		if err != nil {
			slog.Error("failed to count items", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read stats")
			return
		}

		ints, err := data.CountInteractions(db)
		if err != nil {
			slog.Error("failed to count interactions", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read stats")
			return
		}

		users, err := data.CountUsers(db)
		if err != nil {
			slog.Error("failed to count users", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read stats")
			return
		}

		kinds, err := data.CountInteractionKinds(db)
		if err != nil {
			slog.Error("failed to count interaction kinds", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read stats")
			return
		}

		writeJSON(w, http.StatusOK, &Stats{
			Items:        items,
			Interactions: ints,
			Users:        users,
			Kinds:        kinds,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryParamInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
