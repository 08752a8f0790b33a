package admin

import (
	"context"
	"net"
	"strings"
	"time"
)

var lc = net.ListenConfig{
	KeepAlive: 3 * time.Minute,
}

// Listen opens a listener for the admin server.
//
// An address prefixed with "unix:" is a path to a UNIX domain socket. Any
// other address, optionally prefixed with "tcp:", is [host]:port of a TCP
// socket with keep-alive enabled.
func Listen(address string) (net.Listener, error) {
	network := "tcp"
	if proto, rest, ok := strings.Cut(address, ":"); ok {
		switch proto {
		case "unix":
			network = "unix"
			address = rest
		case "tcp":
			address = rest
		}
	}
	return lc.Listen(context.Background(), network, address)
}
