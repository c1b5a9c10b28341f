// Package httpserver serves a directory of boot artifacts over HTTP or
// HTTPS. It is deliberately generic: the TFTP engine knows nothing
// about it beyond start, stop and the bound port.
package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Wa4h1h/go-bootserver/pkg/metrics"
	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

const shutdownTimeout = 5 * time.Second

// Config configures a file server instance.
type Config struct {
	// RootDir is the directory whose contents are served.
	RootDir string

	// Host is the bind address. Empty binds all interfaces.
	Host string

	// Port is the TCP port to bind. 0 requests an OS assigned port.
	Port int

	// CertFile and KeyFile enable TLS. Both are required when TLS is
	// requested via NewTLSFileServer.
	CertFile string
	KeyFile  string

	// ReadTimeout/WriteTimeout/IdleTimeout bound request handling.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}

	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// FileServer serves static files over HTTP, or HTTPS when constructed
// with NewTLSFileServer. Start and Stop are idempotent.
type FileServer struct {
	l   *zap.SugaredLogger
	m   *metrics.Metrics
	cfg Config
	tls bool

	mu        sync.Mutex
	srv       *http.Server
	running   bool
	boundPort int
}

func NewFileServer(l *zap.SugaredLogger, cfg Config, m *metrics.Metrics) *FileServer {
	cfg.applyDefaults()

	return &FileServer{l: l, m: m, cfg: cfg}
}

func NewTLSFileServer(l *zap.SugaredLogger, cfg Config, m *metrics.Metrics) *FileServer {
	cfg.applyDefaults()

	return &FileServer{l: l, m: m, cfg: cfg, tls: true}
}

// Start binds the listener and begins serving in the background.
// For TLS servers a missing certificate or key is a configuration
// error reported synchronously.
func (s *FileServer) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.boundPort, nil
	}

	if s.tls {
		if err := s.checkTLSConfig(); err != nil {
			return 0, err
		}
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("error while binding %s: %w", addr, err)
	}

	s.srv = &http.Server{
		Handler:      newRouter(s.cfg.RootDir, s.l, s.m, s.cfg.MetricsHandler),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	if s.tls {
		s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	s.boundPort = ln.Addr().(*net.TCPAddr).Port
	s.running = true

	go func() {
		var err error

		if s.tls {
			err = s.srv.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.srv.Serve(ln)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Errorf("file server stopped unexpectedly: %s", err.Error())
		}
	}()

	s.l.Infof("%s server serving %s on %s", s.scheme(), s.cfg.RootDir, ln.Addr())

	return s.boundPort, nil
}

// Stop gracefully shuts the server down with a bounded wait. Stop on a
// stopped server is a no-op.
func (s *FileServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)

	s.running = false
	s.boundPort = 0

	if err != nil {
		return fmt.Errorf("error while shutting down %s server: %w", s.scheme(), err)
	}

	return nil
}

// Port returns the bound TCP port while the server is running.
func (s *FileServer) Port() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.boundPort, s.running
}

func (s *FileServer) scheme() string {
	if s.tls {
		return "https"
	}

	return "http"
}

func (s *FileServer) checkTLSConfig() error {
	if s.cfg.CertFile == "" || s.cfg.KeyFile == "" {
		return utils.ErrMissingTLSConfig
	}

	for _, p := range []string{s.cfg.CertFile, s.cfg.KeyFile} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %s", utils.ErrMissingTLSConfig, p)
		}
	}

	return nil
}
