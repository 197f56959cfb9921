package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/devconnect/realtime/config"
	"github.com/devconnect/realtime/server"
	"github.com/devconnect/realtime/src/bridge"
	"github.com/devconnect/realtime/src/collab"
	"github.com/devconnect/realtime/src/hub"
	"github.com/devconnect/realtime/src/interview"
	"github.com/devconnect/realtime/src/service"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	h := hub.New(logger, hub.Options{
		SendBufferSize: cfg.SendBufferSize,
		DropPolicy:     hub.DropPolicy(cfg.DropPolicy),
		PingInterval:   cfg.PingInterval,
	})
	collab.Register(h, logger)
	interview.Register(h, logger)
	svc := service.New(h, logger)

	go h.Run()

	// The Redis bridge is optional: without it the hub runs standalone and
	// rooms are confined to this instance.
	var rb *bridge.RedisBridge
	bcfg := bridge.RedisConfigFromEnv()
	rb = bridge.NewRedisBridge(bcfg, h, logger)
	if err := rb.Start(); err != nil {
		logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		rb = nil
	} else {
		h.SetBridge(rb)
		logger.Info().Str("redis_addr", bcfg.Addr).Msg("redis bridge connected")
	}

	srv := server.New(cfg, h, svc, logger)
	httpSrv := &fasthttp.Server{
		Handler: srv.Handler(),
		Name:    "devconnect-realtime",
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		logger.Info().Str("addr", addr).Msg("realtime server started")
		if err := httpSrv.ListenAndServe(addr); err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if rb != nil {
		if err := rb.Stop(); err != nil {
			logger.Error().Err(err).Msg("bridge stop error")
		}
	}
	h.Stop()
	logger.Info().Msg("server exited")
}
