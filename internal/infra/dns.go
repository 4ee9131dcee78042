// Package infra provides transport helpers shared by the settings loader and the HTTP front end.
package infra

import (
	"context"
	"net"
)

// ResolveDNS resolves a bind host to its IP addresses.
// Literal addresses are returned without a lookup.
func ResolveDNS(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}

	if len(ips) == 0 {
		return nil, &net.DNSError{
			Err:  "no addresses found",
			Name: host,
		}
	}

	return ips, nil
}
