/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package netutil contains network helpers for outgoing connections.
package netutil

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/atomic"
)

// DefaultDNSDialTimeout is used by NewDNSResolver when dialTimeout is zero.
const DefaultDNSDialTimeout = 2 * time.Second

// NewDNSResolver creates a pure Go resolver that sends queries to the given DNS servers ("host:port")
// in round-robin order instead of the ones from the system configuration.
//
// The result may be passed to httpclient.Opts.Resolver:
//
//	resolver, err := netutil.NewDNSResolver([]string{"10.0.0.2:53", "10.0.0.3:53"}, 0)
//	if err != nil {
//		return err
//	}
//	client := httpclient.New(httpclient.Opts{Resolver: resolver})
func NewDNSResolver(servers []string, dialTimeout time.Duration) (*net.Resolver, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("at least one DNS server is required")
	}
	for _, server := range servers {
		if _, _, err := net.SplitHostPort(server); err != nil {
			return nil, fmt.Errorf("invalid DNS server address %q: %w", server, err)
		}
	}
	if dialTimeout == 0 {
		dialTimeout = DefaultDNSDialTimeout
	}

	addrs := append([]string(nil), servers...)
	var next atomic.Uint32
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			addr := addrs[(next.Inc()-1)%uint32(len(addrs))] //nolint:gosec // servers count is small
			return d.DialContext(ctx, network, addr)
		},
	}, nil
}
