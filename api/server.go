package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/logger"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	router     *gin.Engine
	httpServer *http.Server
	deps       *Dependencies
	cfg        *config.Config
	logger     logger.Logger
}

// Run serves the gateway until ctx ends or the process is interrupted.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.NewForEnv(cfg.GetEnv()),
	}
	if err := s.setupDependencies(); err != nil {
		return err
	}
	s.setupBackgroundWork(ctx)
	s.setupRouter()

	errCh := s.setupHTTPServer()
	return s.setupGracefulShutdown(ctx, errCh)
}

func (s *server) setupDependencies() error {
	deps, err := NewDependencies(s.logger, s.cfg, true)
	if err != nil {
		return err
	}
	s.deps = deps
	return nil
}

// setupBackgroundWork starts the cache sweeper and the health poller, and applies config reloads to the poller.
func (s *server) setupBackgroundWork(ctx context.Context) {
	go s.deps.Cache.Run(ctx, s.cfg.GetCacheCleanupInterval())
	s.deps.Health.Start(ctx)

	s.cfg.OnChange(func() {
		s.deps.Health.SetInterval(s.cfg.GetHealthInterval())
	})
}

func (s *server) setupRouter() {
	s.router = newRouter(s.deps)
}

func (s *server) setupHTTPServer() <-chan error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler:           s.router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpServer

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr, "backend", s.cfg.GetAPIBaseURL())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *server) setupGracefulShutdown(ctx context.Context, errCh <-chan error) error {
	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error("http server failed", "err", err.Error())
			s.deps.Close()
			return err
		}
	case <-ctx.Done():
	}

	s.logger.Info("starting to shut down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.deps.Close()
	if err != nil {
		s.logger.Error("error shutting down http server", "err", err.Error())
		return err
	}
	s.logger.Info("shut down http server successfully")
	return nil
}
