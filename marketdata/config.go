/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package marketdata

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/httpclient"
	"github.com/acronis/go-quotakit/internal/libinfo"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/netutil"
	"github.com/acronis/go-quotakit/retry"
)

const cfgKeyPrefix = "marketdata"

const (
	cfgKeyUpstreamURL                  = "upstream.url"
	cfgKeyUpstreamAPIKey               = "upstream.apiKey"
	cfgKeyUpstreamTimeout              = "upstream.timeout"
	cfgKeyUpstreamRequestsPerSecond    = "upstream.requestsPerSecond"
	cfgKeyUpstreamBurst                = "upstream.burst"
	cfgKeyUpstreamRetryMaxAttempts     = "upstream.retry.maxAttempts"
	cfgKeyUpstreamRetryInitialInterval = "upstream.retry.initialInterval"
	cfgKeyUpstreamSymbolMappings       = "upstream.symbolMappings"
	cfgKeyUpstreamDNSServers           = "upstream.dnsServers"
	cfgKeyTTLMetals                    = "ttl.metals"
	cfgKeyTTLCommodities               = "ttl.commodities"
	cfgKeyTTLDefault                   = "ttl.default"
)

const (
	defaultUpstreamURL                  = "https://finnhub.io/api/v1"
	defaultUpstreamTimeout              = 10 * time.Second
	defaultUpstreamRequestsPerSecond    = 5
	defaultUpstreamBurst                = 5
	defaultUpstreamRetryMaxAttempts     = 2
	defaultUpstreamRetryInitialInterval = 200 * time.Millisecond
)

// DefaultSymbolMappings maps instrument symbols to Finnhub ones.
func DefaultSymbolMappings() map[string]string {
	return map[string]string{
		"EURUSD": "OANDA:EUR_USD",
		"GBPUSD": "OANDA:GBP_USD",
		"USDJPY": "OANDA:USD_JPY",
		"AUDUSD": "OANDA:AUD_USD",
		"USDCHF": "OANDA:USD_CHF",
		"USDCAD": "OANDA:USD_CAD",
		"XAUUSD": "OANDA:XAU_USD",
		"XAGUSD": "OANDA:XAG_USD",
		"USOIL":  "OANDA:WTICO_USD",
	}
}

// Config represents a set of configuration parameters for the quote service.
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream" json:"upstream"`
	TTL      TTLConfig      `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// UpstreamConfig represents configuration of the upstream price API.
type UpstreamConfig struct {
	URL               string              `mapstructure:"url" yaml:"url" json:"url"`
	APIKey            string              `mapstructure:"apiKey" yaml:"apiKey" json:"apiKey"`
	Timeout           config.TimeDuration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	RequestsPerSecond int                 `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int                 `mapstructure:"burst" yaml:"burst" json:"burst"`
	RetryMaxAttempts  int                 `mapstructure:"retryMaxAttempts" yaml:"retryMaxAttempts" json:"retryMaxAttempts"`
	RetryInterval     config.TimeDuration `mapstructure:"retryInterval" yaml:"retryInterval" json:"retryInterval"`
	SymbolMappings    map[string]string   `mapstructure:"symbolMappings" yaml:"symbolMappings" json:"symbolMappings"`

	// DNSServers ("host:port") resolve the upstream host instead of the system resolver if not empty.
	DNSServers []string `mapstructure:"dnsServers" yaml:"dnsServers" json:"dnsServers"`

	resolver *net.Resolver
}

// TTLConfig represents cache TTLs of quotes per asset class.
type TTLConfig struct {
	Metals      config.TimeDuration `mapstructure:"metals" yaml:"metals" json:"metals"`
	Commodities config.TimeDuration `mapstructure:"commodities" yaml:"commodities" json:"commodities"`
	Default     config.TimeDuration `mapstructure:"default" yaml:"default" json:"default"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgKeyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyUpstreamURL, defaultUpstreamURL)
	dp.SetDefault(cfgKeyUpstreamTimeout, defaultUpstreamTimeout)
	dp.SetDefault(cfgKeyUpstreamRequestsPerSecond, defaultUpstreamRequestsPerSecond)
	dp.SetDefault(cfgKeyUpstreamBurst, defaultUpstreamBurst)
	dp.SetDefault(cfgKeyUpstreamRetryMaxAttempts, defaultUpstreamRetryMaxAttempts)
	dp.SetDefault(cfgKeyUpstreamRetryInitialInterval, defaultUpstreamRetryInitialInterval)
	dp.SetDefault(cfgKeyTTLMetals, DefaultMetalsTTL)
	dp.SetDefault(cfgKeyTTLCommodities, DefaultCommoditiesTTL)
	dp.SetDefault(cfgKeyTTLDefault, DefaultQuoteTTL)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Upstream.URL, err = dp.GetString(cfgKeyUpstreamURL); err != nil {
		return err
	}
	if c.Upstream.URL == "" {
		return dp.WrapKeyErr(cfgKeyUpstreamURL, fmt.Errorf("cannot be empty"))
	}
	if c.Upstream.APIKey, err = dp.GetString(cfgKeyUpstreamAPIKey); err != nil {
		return err
	}
	if c.Upstream.RequestsPerSecond, err = dp.GetInt(cfgKeyUpstreamRequestsPerSecond); err != nil {
		return err
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return dp.WrapKeyErr(cfgKeyUpstreamRequestsPerSecond, fmt.Errorf("cannot be negative"))
	}
	if c.Upstream.Burst, err = dp.GetInt(cfgKeyUpstreamBurst); err != nil {
		return err
	}
	if c.Upstream.RetryMaxAttempts, err = dp.GetInt(cfgKeyUpstreamRetryMaxAttempts); err != nil {
		return err
	}

	c.Upstream.SymbolMappings = DefaultSymbolMappings()
	if dp.IsSet(cfgKeyUpstreamSymbolMappings) {
		var mappings map[string]string
		if err = dp.UnmarshalKey(cfgKeyUpstreamSymbolMappings, &mappings); err != nil {
			return err
		}
		// Keys are lower-cased by the configuration provider.
		for symbol, upstreamSymbol := range mappings {
			c.Upstream.SymbolMappings[strings.ToUpper(symbol)] = upstreamSymbol
		}
	}

	if c.Upstream.DNSServers, err = dp.GetStringSlice(cfgKeyUpstreamDNSServers); err != nil {
		return err
	}
	c.Upstream.resolver = nil
	if len(c.Upstream.DNSServers) != 0 {
		if c.Upstream.resolver, err = netutil.NewDNSResolver(c.Upstream.DNSServers, 0); err != nil {
			return dp.WrapKeyErr(cfgKeyUpstreamDNSServers, err)
		}
	}

	for _, item := range []struct {
		key string
		dst *config.TimeDuration
	}{
		{cfgKeyUpstreamTimeout, &c.Upstream.Timeout},
		{cfgKeyUpstreamRetryInitialInterval, &c.Upstream.RetryInterval},
		{cfgKeyTTLMetals, &c.TTL.Metals},
		{cfgKeyTTLCommodities, &c.TTL.Commodities},
		{cfgKeyTTLDefault, &c.TTL.Default},
	} {
		var dur time.Duration
		if dur, err = dp.GetDuration(item.key); err != nil {
			return err
		}
		if dur <= 0 {
			return dp.WrapKeyErr(item.key, fmt.Errorf("must be positive"))
		}
		*item.dst = config.TimeDuration(dur)
	}

	return nil
}

// upstreamRequestType names upstream calls in client logs and metrics.
const upstreamRequestType = "finnhub-quote"

// PriceSourceOpts converts the configuration into options for NewHTTPPriceSource.
// clientMetrics is optional.
func (c *Config) PriceSourceOpts(logger log.FieldLogger, clientMetrics httpclient.MetricsCollector) HTTPPriceSourceOpts {
	return HTTPPriceSourceOpts{
		BaseURL:           c.Upstream.URL,
		APIKey:            c.Upstream.APIKey,
		SymbolMappings:    c.Upstream.SymbolMappings,
		RequestsPerSecond: float64(c.Upstream.RequestsPerSecond),
		Burst:             c.Upstream.Burst,
		RetryPolicy: retry.ExponentialBackoffPolicy{
			InitialInterval: time.Duration(c.Upstream.RetryInterval),
			MaxAttempts:     c.Upstream.RetryMaxAttempts,
		},
		HTTPClient: httpclient.New(httpclient.Opts{
			Timeout:          time.Duration(c.Upstream.Timeout),
			UserAgent:        libinfo.UserAgent(),
			RequestType:      upstreamRequestType,
			Logger:           logger,
			MetricsCollector: clientMetrics,
			Resolver:         c.Upstream.resolver,
		}),
		Logger: logger,
	}
}

// ServiceOpts converts the configuration into options for NewService.
func (c *Config) ServiceOpts(logger log.FieldLogger) ServiceOpts {
	return ServiceOpts{
		TTLs: TTLs{
			Metals:      time.Duration(c.TTL.Metals),
			Commodities: time.Duration(c.TTL.Commodities),
			Default:     time.Duration(c.TTL.Default),
		},
		Logger: logger,
	}
}
