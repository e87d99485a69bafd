package scraper

import (
	"context"
	"net"
)

// addrCapture records the local and remote socket addresses of the one
// connection a Scraper's request dials, so Search can report them back
// on Q' as local_ip/port and peer_ip/port.
type addrCapture struct {
	local, remote net.Addr
}

func (c *addrCapture) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	c.local = conn.LocalAddr()
	c.remote = conn.RemoteAddr()
	return conn, nil
}

func splitHostPort(addr net.Addr) (host, port string) {
	if addr == nil {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}
	return host, port
}
