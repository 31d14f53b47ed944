package podman

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "unix:///run/podman/podman.sock"
	apiVersion      = "/v4.0.0"
)

// Connection describes how to reach the libpod REST service.
type Connection struct {
	Endpoint string
	Type     string // tcp or unix

	SocketPath string
	HostPort   string
	BaseURL    string
}

// NewConnectionFromEnv uses PODMAN_ENDPOINT when set, then fallback, then the
// default rootful socket.
func NewConnectionFromEnv(fallback string) (*Connection, error) {
	endpoint := strings.TrimSpace(os.Getenv("PODMAN_ENDPOINT"))
	if endpoint == "" {
		endpoint = strings.TrimSpace(fallback)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return NewConnection(endpoint)
}

// NewConnection parses an endpoint like:
//
//	unix:///run/podman/podman.sock
//	tcp://example.com:8080
func NewConnection(endpoint string) (*Connection, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid podman endpoint %q: %w", endpoint, err)
	}

	c := &Connection{Endpoint: endpoint}

	switch strings.ToLower(u.Scheme) {
	case "unix":
		// url.Parse treats unix:///path as Path="/path"
		if u.Path == "" {
			return nil, fmt.Errorf("unix endpoint missing socket path: %q", endpoint)
		}
		c.Type = "unix"
		c.SocketPath = u.Path

		// The transport ignores the host, but net/http needs one.
		c.BaseURL = "http://d"

	case "tcp", "http":
		if u.Host == "" {
			return nil, fmt.Errorf("tcp endpoint missing host:port: %q", endpoint)
		}
		c.Type = "tcp"
		c.HostPort = u.Host
		c.BaseURL = "http://" + u.Host

	default:
		return nil, fmt.Errorf("unsupported podman endpoint scheme %q (use unix:// or tcp://)", u.Scheme)
	}

	return c, nil
}

// Client returns an *http.Client for the endpoint. A zero timeout is for
// streaming calls bounded only by their context.
func (c *Connection) Client(timeout time.Duration) (*http.Client, error) {
	switch c.Type {
	case "tcp":
		return &http.Client{
			Timeout: timeout,
		}, nil

	case "unix":
		dialer := &net.Dialer{Timeout: 10 * time.Second}

		tr := &http.Transport{
			// Always dial the socket, whatever the URL host says.
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", c.SocketPath)
			},
		}

		return &http.Client{
			Transport: tr,
			Timeout:   timeout,
		}, nil

	default:
		return nil, fmt.Errorf("invalid podman connection type %q", c.Type)
	}
}

func (c *Connection) NewRequest(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body io.Reader,
) (*http.Request, error) {

	target := c.BaseURL + apiVersion + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
