package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/emilyzhang/assetcrawlr/assetcrawler"
	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Server represents an API server containing an extraction store, the
// crawler that fills it and a logger.
type Server struct {
	log     logger.Logger
	store   extractiondb.Store
	crawler *assetcrawler.Crawler
	engine  *gin.Engine
}

// New creates a new API Server.
func New(store extractiondb.Store, crawler *assetcrawler.Crawler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		log:     log,
		store:   store,
		crawler: crawler,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(log))
	s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("Starting API server", logger.String("address", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			log.Error("HTTP request with errors", append(fields, logger.String("errors", c.Errors.String()))...)
			return
		}
		log.Debug("HTTP request", fields...)
	}
}
