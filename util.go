package sysgate

import (
	"net"
	"strconv"
)

// JoinHostPort joins a bind address and port, bracketing IPv6 literals.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
