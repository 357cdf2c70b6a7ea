package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Sternrassler/lever-ats-client/pkg/config"
	"github.com/Sternrassler/lever-ats-client/pkg/tools"
	"github.com/Sternrassler/lever-ats-client/pkg/tracing"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			fxApp := fx.New(serveOptions(a.cfg, a.debug)...)
			fxApp.Run()
			return fxApp.Err()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func serveOptions(cfg *config.Config, verbose bool) []fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(
			newRedis,
			newLimiter,
			newExecutor,
			newLeverClient,
			tools.NewRegistry,
			newHTTPServer,
		),
		fx.Invoke(
			setupTracer,
			registerRedisHooks,
			startServer,
		),
	}
	if !verbose {
		opts = append(opts, fx.NopLogger)
	}
	return opts
}

func newHTTPServer(cfg *config.Config, reg *tools.Registry, rh redisHandle) *http.Server {
	var ready pinger
	if rh.Client != nil {
		ready = func(ctx context.Context) error { return rh.Client.Ping(ctx).Err() }
	}

	// Writes may take as long as a full tool call.
	writeTimeout := cfg.Server.RequestTimeout + 5*time.Second

	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(reg, ready, cfg.Server.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

func setupTracer(lc fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := tracing.Init(context.Background(), tracing.Config{
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down tracer provider")
			return shutdown(ctx)
		},
	})
	return nil
}

func registerRedisHooks(lc fx.Lifecycle, rh redisHandle) {
	if rh.Client == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Unreachable Redis is not fatal: the limiter falls back to
			// the local window.
			if err := rh.Client.Ping(ctx).Err(); err != nil {
				log.Warn().Err(err).Msg("Redis unreachable, rate limiting is process-local until it recovers")
			} else {
				log.Info().Msg("Connected to Redis for shared rate limiting")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rh.Client.Close()
		},
	})
}

func startServer(lc fx.Lifecycle, server *http.Server, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			go func() {
				log.Info().Str("addr", ln.Addr().String()).Msg("Starting tool server")
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("HTTP server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			log.Info().Msg("Shutting down tool server")
			return server.Shutdown(ctx)
		},
	})
}
