package preview

import (
	"crypto/tls"
	"net"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v3"
)

// maxPortProbes bounds how many consecutive ports bind tries when the
// caller does not insist on the configured one.
const maxPortProbes = 10

// listener owns the socket lifecycle for one server. It is constructed
// bound to a request entry point but does not accept connections until
// bind runs; shutdown releases the socket and waits for the serve
// goroutine, so a closed listener leaves no OS resource behind.
type listener struct {
	app    *fiber.App
	tlsCfg *tls.Config
	host   string
	port   int

	mu    sync.Mutex
	ln    net.Listener
	done  chan error
	bound bool
}

// newListener validates the transport inputs and returns an unbound handle.
func newListener(app *fiber.App, opts Options) (*listener, error) {
	if app == nil {
		return nil, &ServerCreationError{Reason: "request entry point is required"}
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, &ServerCreationError{Reason: "listen port out of range"}
	}
	if opts.TLS != nil && len(opts.TLS.Certificates) == 0 && opts.TLS.GetCertificate == nil {
		return nil, &ServerCreationError{Reason: "TLS enabled without certificates"}
	}

	return &listener{
		app:    app,
		tlsCfg: opts.TLS,
		host:   opts.Host,
		port:   opts.Port,
	}, nil
}

// bind opens the socket and starts serving on it. With strict set, a busy
// port fails immediately; otherwise consecutive ports are probed before
// giving up. The returned address carries the port actually bound.
func (l *listener) bind(strict bool) (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bound {
		return nil, &ServerCreationError{Reason: "listener already bound"}
	}

	ln, err := l.listen(strict)
	if err != nil {
		return nil, err
	}
	if l.tlsCfg != nil {
		ln = tls.NewListener(ln, l.tlsCfg)
	}

	l.ln = ln
	l.bound = true
	l.done = make(chan error, 1)

	go func() {
		l.done <- l.app.Listener(ln, fiber.ListenConfig{
			DisableStartupMessage: true,
		})
	}()

	return ln.Addr(), nil
}

func (l *listener) listen(strict bool) (net.Listener, error) {
	attempts := 1
	if !strict {
		attempts = maxPortProbes
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		addr := net.JoinHostPort(l.host, strconv.Itoa(l.port+i))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, &BindError{Host: l.host, Port: l.port, Err: lastErr}
}

// shutdown stops accepting, closes the socket, and waits for the serve
// goroutine to return. Calling it on a never-bound listener is a no-op.
func (l *listener) shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.bound {
		return nil
	}
	l.bound = false

	err := l.app.Shutdown()
	if serveErr := <-l.done; serveErr != nil && err == nil {
		err = serveErr
	}
	return err
}
