package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finhealth/internal/shared/config"
	"finhealth/internal/shared/middleware"
)

type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
}

// StartServers starts the API server and, with TLS redirect enabled, a
// plain-HTTP server on :80 that redirects to HTTPS. Listener failures are
// sent on the returned channel.
func StartServers(scfg ServerConfig, log zerolog.Logger) (srv, redirectSrv *http.Server, errc <-chan error) {
	errs := make(chan error, 2)

	srv = &http.Server{
		Addr:         scfg.Addr,
		Handler:      scfg.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = createRedirectServer(scfg.AllowedHosts)
		go func() {
			log.Info().Msg("HTTP redirect server starting on :80")
			if err := redirectSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP redirect server error")
			}
		}()
	}

	go func() {
		var err error
		if scfg.TLSEnabled {
			log.Info().Str("addr", scfg.Addr).Msg("HTTPS server starting")
			err = srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath)
		} else {
			log.Info().Str("addr", scfg.Addr).Msg("HTTP server starting")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	return srv, redirectSrv, errs
}

// GracefulShutdown stops accepting requests first, then drains the worker
// pool so queued webhook events finish.
func GracefulShutdown(srv, redirectSrv *http.Server, deps *Dependencies, timeout time.Duration, log zerolog.Logger) {
	log.Info().Msg("Server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if redirectSrv != nil {
		if err := redirectSrv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Error shutting down HTTP redirect server")
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down main server")
	}

	if deps.Pool != nil {
		deps.Pool.Shutdown(timeout)
	}

	log.Info().Msg("Server stopped")
}

func createRedirectServer(allowedHosts []string) *http.Server {
	redirectHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}

		if !middleware.IsHostAllowed(host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}

		if idx := strings.Index(host, ":"); idx != -1 {
			host = host[:idx]
		}
		http.Redirect(w, r, "https://"+host+r.RequestURI, http.StatusMovedPermanently)
	})

	return &http.Server{
		Addr:         ":80",
		Handler:      redirectHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler:      handler,
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		TLSEnabled:   cfg.TLS.Enabled,
		CertPath:     cfg.TLS.CertPath,
		KeyPath:      cfg.TLS.KeyPath,
		RedirectHTTP: cfg.TLS.RedirectHTTP,
		AllowedHosts: cfg.Server.AllowedHosts,
	}
}
