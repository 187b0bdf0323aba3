package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/taskmill/taskmill/pkg/logger"
	"go.temporal.io/sdk/client"
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type TemporalConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
	APIKey    string
	Metadata  map[string]string
	TLS       *tls.Config
}

type Client struct {
	client.Client
	config *TemporalConfig
}

// staticHeaders attaches a fixed set of gRPC headers to every outgoing call.
type staticHeaders map[string]string

func (h staticHeaders) GetHeaders(_ context.Context) (map[string]string, error) {
	return h, nil
}

// buildHeaders derives the gRPC metadata for a connection. Caller metadata
// overlays the derived auth header so user-supplied keys always win.
func buildHeaders(cfg *TemporalConfig) staticHeaders {
	headers := make(staticHeaders)
	if cfg.APIKey != "" {
		headers["authorization"] = "Bearer " + cfg.APIKey
	}
	for k, v := range cfg.Metadata {
		headers[k] = v
	}
	return headers
}

func NewClient(ctx context.Context, cfg *TemporalConfig) (*Client, error) {
	log := logger.FromContext(ctx)
	if cfg == nil || cfg.HostPort == "" {
		return nil, ErrMissingHostPort
	}
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	if cfg.TLS != nil {
		options.ConnectionOptions.TLS = cfg.TLS
	}
	if headers := buildHeaders(cfg); len(headers) > 0 {
		options.HeadersProvider = headers
	}
	dialStart := time.Now()
	temporalClient, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	log.Debug("Temporal client connected", "host_port", cfg.HostPort, "duration", time.Since(dialStart))
	return &Client{
		Client: temporalClient,
		config: cfg,
	}, nil
}

// WrapClient adapts an externally supplied connection. Ownership stays with the
// caller and the manager never closes it.
func WrapClient(c client.Client, cfg *TemporalConfig) *Client {
	if cfg == nil {
		cfg = &TemporalConfig{}
	}
	return &Client{Client: c, config: cfg}
}

func (c *Client) Config() *TemporalConfig {
	return c.config
}

func (c *Client) Close() {
	c.Client.Close()
}
