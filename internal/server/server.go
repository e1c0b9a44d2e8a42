// Package server provides the admin/telemetry HTTP server. It exposes the
// collection core's self-monitoring averages, the supported-parameter
// catalog and the force-poll entry point; it carries no collection traffic.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/config"
)

type Server struct {
	cfg  config.Server
	http *http.Server
}

// NewServer builds the server. registerHandlerFn receives the /api/v1
// router group.
func NewServer(cfg config.Server, auth config.Authentication, registerHandlerFn func(router *gin.RouterGroup)) (*Server, error) {
	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	api := router.Group("/api/v1")
	if auth.Enabled {
		middleware, err := jwtAuthMiddleware(auth)
		if err != nil {
			return nil, err
		}
		api.Use(middleware)
	}
	registerHandlerFn(api)

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler: router,
		},
	}, nil
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.S().Named("server").Infow("admin server listening", "addr", s.http.Addr, "mode", s.cfg.Mode)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
