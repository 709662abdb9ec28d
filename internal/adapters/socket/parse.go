package socket

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.Resolver = Parser{}

// Parser resolves migration URIs of the forms
//
//	tcp:HOST:PORT   HOST:PORT   unix:PATH   fd:N   vsock:CID:PORT
//
// IPv6 hosts are written in brackets ("tcp:[::1]:4444"). An empty host
// means all interfaces when listening.
type Parser struct{}

// Resolve implements ports.Resolver.
func (Parser) Resolve(uri string) (domain.Address, error) {
	addr, err := parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrAddressParse, uri, err)
	}
	return addr, nil
}

func parse(uri string) (domain.Address, error) {
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok {
		return nil, fmt.Errorf("missing scheme or port")
	}

	switch scheme {
	case "tcp":
		return parseInet(rest)
	case "unix":
		if rest == "" {
			return nil, fmt.Errorf("empty socket path")
		}
		return domain.UnixAddress{Path: rest}, nil
	case "fd":
		fd, err := strconv.Atoi(rest)
		if err != nil || fd < 0 {
			return nil, fmt.Errorf("invalid file descriptor %q", rest)
		}
		return domain.FDAddress{FD: fd}, nil
	case "vsock":
		cid, port, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("vsock address needs CID:PORT")
		}
		c, err := strconv.ParseUint(cid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vsock cid %q", cid)
		}
		p, err := strconv.ParseUint(port, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vsock port %q", port)
		}
		return domain.VsockAddress{CID: uint32(c), Port: uint32(p)}, nil
	default:
		// No known scheme: treat the whole string as HOST:PORT.
		return parseInet(uri)
	}
}

func parseInet(hostport string) (domain.Address, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q", port)
	}
	return domain.InetAddress{Host: host, Port: strconv.FormatUint(n, 10)}, nil
}
