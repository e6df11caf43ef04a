package preview

import (
	"fmt"
	"net"
	"strconv"
)

// ConfigError reports resolved options the server cannot act on: malformed
// TLS material, out-of-range ports, unusable host values. Surfaced by New
// before any listener exists.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preview config: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("preview config: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ServerCreationError reports that the transport could not be constructed.
// Fatal and never retried.
type ServerCreationError struct {
	Reason string
	Err    error
}

func (e *ServerCreationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("create server: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("create server: %s", e.Reason)
}

func (e *ServerCreationError) Unwrap() error { return e.Err }

// BindError reports that the requested address could not be bound. It
// carries the attempted endpoint so CLI output can name the conflicting
// host:port.
type BindError struct {
	Host string
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }
