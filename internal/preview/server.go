package preview

import (
	"net"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/smeltjs/smelt/internal/config"
	"github.com/smeltjs/smelt/internal/logging"
	"github.com/smeltjs/smelt/internal/publicdir"
	"github.com/smeltjs/smelt/internal/tlsconf"
)

type serverState int

const (
	stateBuilt serverState = iota
	stateListening
	stateFailed
	stateClosed
)

// Server serves one production build. Lifecycle: New resolves options,
// scans the dist directory, and constructs the bound-but-idle listener;
// Listen binds the port; Close releases it. A Server that failed to listen
// is terminal and must be replaced, not retried.
type Server struct {
	opts   Options
	logger *logrus.Logger
	index  *publicdir.Index
	app    *fiber.App
	ln     *listener

	mu    sync.Mutex
	state serverState
	urls  URLs
}

// New builds a preview server from the resolved configuration. No socket is
// opened yet; failures here surface as ConfigError or ServerCreationError
// and never leave anything listening.
func New(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	if logger == nil {
		return nil, &ServerCreationError{Reason: "logger is required"}
	}

	opts, err := resolveOptions(cfg)
	if err != nil {
		return nil, err
	}

	tlsCfg, err := tlsconf.Resolve(cfg.EffectiveHTTPS(), opts.Root)
	if err != nil {
		return nil, &ConfigError{Reason: "resolve TLS material", Err: err}
	}
	opts.TLS = tlsCfg

	index, err := publicdir.Scan(opts.DistDir)
	if err != nil {
		return nil, &ConfigError{Reason: "scan dist directory", Err: err}
	}

	app, err := buildApp(opts, index, logger)
	if err != nil {
		return nil, &ServerCreationError{Reason: "assemble middleware chain", Err: err}
	}

	ln, err := newListener(app, opts)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"action":   "server_built",
		"dist_dir": opts.DistDir,
		"files":    index.Len(),
		"https":    opts.TLS != nil,
	}).Debug("preview server assembled")

	return &Server{
		opts:   opts,
		logger: logger,
		index:  index,
		app:    app,
		ln:     ln,
	}, nil
}

// Listen binds the configured address and starts accepting connections.
// Preview binds strictly: a busy port fails regardless of the configured
// StrictPort, and the instance becomes terminal. On success the resolved
// URLs are available through URLs.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateListening:
		return &ServerCreationError{Reason: "server already listening"}
	case stateClosed:
		return &ServerCreationError{Reason: "server is closed"}
	case stateFailed:
		return &ServerCreationError{Reason: "server previously failed; build a new one"}
	}

	addr, err := s.ln.bind(true)
	if err != nil {
		s.state = stateFailed
		return err
	}

	port := s.opts.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	s.urls = resolveURLs(s.opts.Host, port, s.opts.TLS != nil)
	s.state = stateListening

	fields := logging.ServerFields(s.opts.Host, port, s.opts.TLS != nil)
	fields["action"] = "listen"
	fields["dist_dir"] = s.opts.DistDir
	s.logger.WithFields(fields).Info("preview listening")
	return nil
}

// Close tears the listener down and waits for the socket to be released.
// Idempotent; a no-op when the server never listened.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	wasListening := s.state == stateListening
	s.state = stateClosed

	err := s.ln.shutdown()
	if wasListening {
		s.logger.WithFields(logrus.Fields{"action": "close"}).Info("preview closed")
	}
	return err
}

// URLs returns the resolved display addresses. Empty until Listen succeeds.
func (s *Server) URLs() URLs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return URLs{
		Local:   append([]string(nil), s.urls.Local...),
		Network: append([]string(nil), s.urls.Network...),
	}
}

// Options exposes the resolved options. The returned value shares the
// header map and TLS config, both treated as immutable after New.
func (s *Server) Options() Options {
	return s.opts
}
