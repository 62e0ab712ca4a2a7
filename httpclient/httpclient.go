/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/acronis/go-quotakit/log"
)

// DefaultRequestType is used in logs and metrics when Opts.RequestType is empty.
const DefaultRequestType = "external"

// Opts represents options for New and NewRoundTripper.
type Opts struct {
	// Timeout limits the whole request including reading the response body. Zero means no timeout.
	Timeout time.Duration

	// UserAgent is set in requests that don't have the User-Agent header.
	UserAgent string

	// RequestType names the remote service in logs and metrics, e.g. "finnhub-quote".
	RequestType string

	// Logger is used when the request context carries no request-scoped logger.
	Logger log.FieldLogger

	// SlowRequestThreshold turns the log entry of a successful request into a warning. Zero means 1s.
	SlowRequestThreshold time.Duration

	// MetricsCollector is optional, requests are not measured if nil.
	MetricsCollector MetricsCollector

	// Resolver replaces the system DNS resolver (see netutil.NewDNSResolver). Ignored if Delegate is set.
	Resolver *net.Resolver

	// Delegate is the underlying transport. http.DefaultTransport is used if nil.
	Delegate http.RoundTripper
}

// New creates an http.Client with the logging, metrics, User-Agent and request ID round trippers.
func New(opts Opts) *http.Client {
	return &http.Client{Timeout: opts.Timeout, Transport: NewRoundTripper(opts)}
}

// NewRoundTripper builds the transport chain used by New.
func NewRoundTripper(opts Opts) http.RoundTripper {
	delegate := opts.Delegate
	if delegate == nil {
		delegate = newTransport(opts.Resolver)
	}
	reqType := opts.RequestType
	if reqType == "" {
		reqType = DefaultRequestType
	}

	var rt http.RoundTripper = delegate
	if opts.MetricsCollector != nil {
		rt = &MetricsRoundTripper{Delegate: rt, RequestType: reqType, Collector: opts.MetricsCollector}
	}
	rt = &LoggingRoundTripper{
		Delegate:             rt,
		RequestType:          reqType,
		Logger:               log.OrDisabled(opts.Logger),
		SlowRequestThreshold: opts.SlowRequestThreshold,
	}
	rt = &RequestIDRoundTripper{Delegate: rt}
	if opts.UserAgent != "" {
		rt = &UserAgentRoundTripper{Delegate: rt, UserAgent: opts.UserAgent}
	}
	return rt
}

func newTransport(resolver *net.Resolver) http.RoundTripper {
	if resolver == nil {
		return http.DefaultTransport
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Resolver: resolver}
	transport.DialContext = dialer.DialContext
	return transport
}
