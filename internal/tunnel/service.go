// Package tunnel optionally exposes the playlist service on a public ngrok
// URL so clients outside the local network can reach it.
package tunnel

import (
	"context"
	"fmt"
	"os"

	"setlist/internal/config"

	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok/v2"
)

// EnvAuthToken is read when the config file carries no auth token
const EnvAuthToken = "NGROK_AUTHTOKEN"

// Service represents the ngrok tunnel service
type Service struct {
	config *config.NgrokConfig
	logger *logrus.Logger
	agent  ngrok.Agent
	tunnel ngrok.EndpointForwarder
}

// NewService creates a new tunnel service. It returns (nil, nil) when the
// tunnel is disabled; all methods are safe to call on a nil *Service.
func NewService(cfg *config.NgrokConfig, logger *logrus.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv(EnvAuthToken)
	}

	if authToken == "" {
		return nil, fmt.Errorf("ngrok auth token not found; set %s in .env or auth_token in config", EnvAuthToken)
	}

	agent, err := ngrok.NewAgent(ngrok.WithAuthtoken(authToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create ngrok agent: %w", err)
	}

	return &Service{
		config: cfg,
		logger: logger,
		agent:  agent,
	}, nil
}

// trafficPolicy returns the OAuth policy document, or "" when auth is off
func trafficPolicy(cfg *config.NgrokConfig) string {
	if !cfg.EnableAuth {
		return ""
	}
	return fmt.Sprintf(`
on_http_request:
  - actions:
      - type: oauth
        config:
          provider: %s
`, cfg.AuthProvider)
}

// StartTunnel forwards the public endpoint to localAddress
func (s *Service) StartTunnel(ctx context.Context, localAddress string) error {
	if s == nil {
		return nil
	}

	var endpointOpts []ngrok.EndpointOption
	if s.config.Domain != "" {
		endpointOpts = append(endpointOpts, ngrok.WithURL(s.config.Domain))
	}
	if policy := trafficPolicy(s.config); policy != "" {
		endpointOpts = append(endpointOpts, ngrok.WithTrafficPolicy(policy))
	}

	tunnel, err := s.agent.Forward(ctx, ngrok.WithUpstream(localAddress), endpointOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}
	s.tunnel = tunnel

	s.logger.WithFields(logrus.Fields{
		"public_url": tunnel.URL().String(),
		"upstream":   localAddress,
		"oauth":      s.config.EnableAuth,
	}).Info("Ngrok tunnel active")

	return nil
}

// PublicURL returns the public URL of the tunnel, or "" when not running
func (s *Service) PublicURL() string {
	if s == nil || s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL().String()
}

// Stop closes the tunnel
func (s *Service) Stop() error {
	if s == nil || s.tunnel == nil {
		return nil
	}
	s.logger.Info("Stopping ngrok tunnel")
	return s.tunnel.Close()
}
