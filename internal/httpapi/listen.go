package httpapi

import (
	"fmt"
	"net"
)

// listen binds addr, refusing any host that is not a loopback address
// ("localhost" or a loopback IP).
func listen(addr string) (net.Listener, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, fmt.Errorf("httpapi: refusing non-loopback listen address %q", addr)
	}
	return net.Listen("tcp", addr)
}
