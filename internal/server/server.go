// Package server wires the page renderer and asset dispatcher into the HTTP front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"zone.digit.vitrine/internal/config"
	"zone.digit.vitrine/internal/infra"
	"zone.digit.vitrine/internal/static"
	"zone.digit.vitrine/internal/templates"
)

const (
	htmlContentType = "text/html; charset=utf-8"

	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// PageRenderer renders a page to HTML.
type PageRenderer interface {
	Render(p templates.Page) (string, error)
}

// AssetServer resolves an asset path to a response.
type AssetServer interface {
	Serve(path string) static.Response
}

// Server is the HTTP front end.
type Server struct {
	settings *config.Settings
	logger   *slog.Logger
	pages    PageRenderer
	assets   AssetServer
	router   *gin.Engine
}

// New returns a server with its routes registered.
func New(settings *config.Settings, logger *slog.Logger, pages PageRenderer, assets AssetServer) *Server {
	s := &Server{
		settings: settings,
		logger:   logger,
		pages:    pages,
		assets:   assets,
	}

	router := gin.New()
	router.Use(requestLogger(logger), recovery(logger))
	s.RegisterRoutes(router)
	s.router = router

	return s
}

// RegisterRoutes registers the page and asset routes.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.page(templates.Home{}))
	router.GET("/about-us", s.page(templates.AboutUs{}))
	router.GET("/_assets/*path", s.asset)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run binds the configured address and serves until ctx is done.
// A bind failure is returned before any request is served.
func (s *Server) Run(ctx context.Context) error {
	addr := s.settings.Address()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.logger.Info("http server listening", "url", "http://"+ln.Addr().String())

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	<-errCh

	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) page(p templates.Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		html, err := s.pages.Render(p)
		if err != nil {
			s.logger.Error("failed to render page",
				"page", p.TemplateName(),
				"path", c.Request.URL.Path,
				"error", err,
			)
			c.String(http.StatusInternalServerError, "500 Internal Server Error")
			return
		}

		h := http.Header{}
		h.Set("Content-Type", htmlContentType)
		s.reply(c, http.StatusOK, h, []byte(html))
	}
}

func (s *Server) asset(c *gin.Context) {
	resp := s.assets.Serve(strings.TrimPrefix(c.Param("path"), "/"))
	s.reply(c, resp.Status, resp.Header, resp.Body)
}

// reply writes the response, compressing the body when enabled and worthwhile.
func (s *Server) reply(c *gin.Context, status int, header http.Header, body []byte) {
	for k, vs := range header {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}

	if s.settings.Compression && len(body) >= infra.MinCompressSize && infra.ShouldCompress(header.Get("Content-Type")) {
		c.Writer.Header().Add("Vary", "Accept-Encoding")
		if enc := infra.NegotiateEncoding(c.GetHeader("Accept-Encoding")); enc != "" {
			compressed, err := infra.Compress(body, enc)
			switch {
			case err != nil:
				s.logger.Warn("failed to compress response", "encoding", enc, "error", err)
			case len(compressed) < len(body):
				c.Writer.Header().Set("Content-Encoding", enc)
				body = compressed
			}
		}
	}

	c.Status(status)
	if len(body) > 0 {
		c.Writer.Write(body)
	}
}
