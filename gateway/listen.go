package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/cloudbox/sysgate"
)

// Listen resolves host to a concrete address family and opens the listening
// socket. IPv4 results listen on tcp4, IPv6 on tcp6; an empty host listens
// on every family. Failures wrap sysgate.ErrBind.
func Listen(host string, port int) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", sysgate.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w: %w", host, err, sysgate.ErrBind)
	}

	ln, err := net.Listen(network(addr), addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w: %w", addr, err, sysgate.ErrBind)
	}

	return ln, nil
}

func network(addr *net.TCPAddr) string {
	switch {
	case addr.IP == nil:
		return "tcp"
	case addr.IP.To4() != nil:
		return "tcp4"
	default:
		return "tcp6"
	}
}

// Serve answers requests on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.ready.Store(true)
	defer s.ready.Store(false)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Server Started")

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

// Close stops accepting connections and waits for in-flight calls to finish
// or ctx to expire.
func (s *Server) Close(ctx context.Context) error {
	s.ready.Store(false)

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
