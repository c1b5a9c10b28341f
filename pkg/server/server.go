// Package server composes the HTTP, HTTPS and TFTP listeners into one
// start/stop unit and reports their bound ports.
package server

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Wa4h1h/go-bootserver/pkg/httpserver"
	"github.com/Wa4h1h/go-bootserver/pkg/metrics"
	"github.com/Wa4h1h/go-bootserver/pkg/streams"
	"github.com/Wa4h1h/go-bootserver/pkg/tftp"
)

// service is the common surface of the owned listeners.
type service interface {
	Start() (int, error)
	Stop() error
	Port() (int, bool)
}

// Config configures the composed boot artifact server.
type Config struct {
	// RootDir is the artifact directory served by every listener.
	RootDir string

	// HTTP is always started.
	HTTP struct {
		Host string
		Port int
	}

	// HTTPS is started only when Enabled. CertFile and KeyFile must
	// both name existing files.
	HTTPS struct {
		Enabled  bool
		Host     string
		Port     int
		CertFile string
		KeyFile  string
	}

	// TFTP is started unless disabled.
	TFTP struct {
		Enabled     bool
		Host        string
		Port        int
		AckTimeout  time.Duration
		MaxSessions int
	}

	// StreamsManifest, when set, names a manifest file to load and
	// watch for changes.
	StreamsManifest string
}

// Server owns the three listeners. Start and Stop are idempotent; a
// failing sub-server stop never prevents the others from stopping.
type Server struct {
	l   *zap.SugaredLogger
	m   *metrics.Metrics
	cfg Config

	http    service
	https   service
	tftp    service
	watcher *streams.Watcher

	mu      sync.Mutex
	started bool
}

func New(l *zap.SugaredLogger, cfg Config, m *metrics.Metrics) (*Server, error) {
	info, err := os.Stat(cfg.RootDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root directory does not exist: %s", cfg.RootDir)
	}

	s := &Server{l: l, m: m, cfg: cfg}

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}

	s.http = httpserver.NewFileServer(l, httpserver.Config{
		RootDir:        cfg.RootDir,
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		MetricsHandler: metricsHandler,
	}, m)

	if cfg.HTTPS.Enabled {
		s.https = httpserver.NewTLSFileServer(l, httpserver.Config{
			RootDir:  cfg.RootDir,
			Host:     cfg.HTTPS.Host,
			Port:     cfg.HTTPS.Port,
			CertFile: cfg.HTTPS.CertFile,
			KeyFile:  cfg.HTTPS.KeyFile,
		}, m)
	}

	if cfg.TFTP.Enabled {
		t, err := tftp.NewServer(l, tftp.Config{
			Host:        cfg.TFTP.Host,
			Port:        cfg.TFTP.Port,
			RootDir:     cfg.RootDir,
			AckTimeout:  cfg.TFTP.AckTimeout,
			MaxSessions: cfg.TFTP.MaxSessions,
		}, m)
		if err != nil {
			return nil, fmt.Errorf("error while creating tftp server: %w", err)
		}

		s.tftp = t
	}

	if cfg.StreamsManifest != "" {
		s.watcher = streams.NewWatcher(l, cfg.StreamsManifest)
	}

	return s, nil
}

// Start brings the listeners up: HTTP first, then HTTPS, then TFTP.
// An HTTPS configuration error surfaces after HTTP is already bound;
// the caller must invoke Stop to release it. Each sub-server start is
// itself idempotent, so retrying Start after a partial failure does
// not rebind already-running listeners.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if _, err := s.http.Start(); err != nil {
		return fmt.Errorf("error while starting http server: %w", err)
	}

	if s.https != nil {
		if _, err := s.https.Start(); err != nil {
			return fmt.Errorf("error while starting https server: %w", err)
		}
	}

	if s.tftp != nil {
		if _, err := s.tftp.Start(); err != nil {
			return fmt.Errorf("error while starting tftp server: %w", err)
		}
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			// a broken manifest must not keep artifacts from being served
			s.l.Warnf("stream manifest unavailable: %s", err.Error())
		}
	}

	s.started = true

	return nil
}

// Stop stops every owned service. Errors from individual stops are
// logged and never propagated so one failing shutdown path cannot keep
// another socket bound.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.l.Errorf("error while stopping manifest watcher: %s", err.Error())
		}
	}

	for name, svc := range map[string]service{
		"tftp": s.tftp, "https": s.https, "http": s.http,
	} {
		if svc == nil {
			continue
		}

		if err := svc.Stop(); err != nil {
			s.l.Errorf("error while stopping %s server: %s", name, err.Error())
		}
	}

	s.started = false
}

// HTTPPort returns the bound HTTP port while running.
func (s *Server) HTTPPort() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return portOf(s.http)
}

// HTTPSPort returns the bound HTTPS port while running.
func (s *Server) HTTPSPort() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return portOf(s.https)
}

// TFTPPort returns the bound TFTP port while running.
func (s *Server) TFTPPort() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return portOf(s.tftp)
}

// Artifacts returns the current stream manifest contents.
func (s *Server) Artifacts() (streams.Artifacts, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return streams.Artifacts{}, false
	}

	return s.watcher.Artifacts(), true
}

func portOf(svc service) (int, bool) {
	if svc == nil {
		return 0, false
	}

	return svc.Port()
}
