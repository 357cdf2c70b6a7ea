package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/lever-ats-client/pkg/lever"
	"github.com/Sternrassler/lever-ats-client/pkg/metrics"
	"github.com/Sternrassler/lever-ats-client/pkg/tools"
)

const maxArgsBytes = 1 << 20

// invoker is the part of the registry the HTTP handlers need.
type invoker interface {
	Call(ctx context.Context, name string, args map[string]any) tools.Envelope
	List() []tools.Tool
}

// pinger reports whether a backing service is reachable.
type pinger func(ctx context.Context) error

func newRouter(reg invoker, ready pinger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(ready))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/tools", listToolsHandler(reg))
	r.Post("/tools/{name}", callToolHandler(reg, requestTimeout))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(ready pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				log.Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "Not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func listToolsHandler(reg invoker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.List())
	}
}

func callToolHandler(reg invoker, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		args, err := readArgs(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, tools.Envelope{
				Tool: name,
				Error: &lever.ErrorDescription{
					Kind:     lever.KindValidation,
					Message:  err.Error(),
					Guidance: "send the arguments as a JSON object",
				},
			})
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		env := reg.Call(ctx, name, args)
		writeJSON(w, statusFor(env), env)
	}
}

func readArgs(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxArgsBytes))
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

// statusFor maps an envelope to an HTTP status. The envelope carries the
// details either way.
func statusFor(env tools.Envelope) int {
	if env.Error == nil {
		return http.StatusOK
	}
	switch env.Error.Kind {
	case lever.KindValidation:
		return http.StatusBadRequest
	case lever.KindCapabilityUnsupported:
		return http.StatusNotImplemented
	case lever.KindPermanentAPI:
		if env.Error.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case lever.KindTransientAPI:
		return http.StatusServiceUnavailable
	case lever.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	case lever.KindConfiguration, lever.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
