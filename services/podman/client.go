package podman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

const requestTimeout = 60 * time.Second

// apiClient issues libpod REST calls and maps failures onto errdefs
// sentinels so callers can test for not-found and conflict.
type apiClient struct {
	conn   *Connection
	http   *http.Client
	stream *http.Client
}

func newAPIClient(conn *Connection) (*apiClient, error) {
	hc, err := conn.Client(requestTimeout)
	if err != nil {
		return nil, err
	}
	sc, err := conn.Client(0)
	if err != nil {
		return nil, err
	}
	return &apiClient{conn: conn, http: hc, stream: sc}, nil
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when it is non-nil.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return c.doRaw(ctx, method, path, query, body, out)
}

func (c *apiClient) doRaw(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	resp, err := c.send(ctx, c.http, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// send performs the request and returns the response only on success; the
// caller owns the body.
func (c *apiClient) send(ctx context.Context, hc *http.Client, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	req, err := c.conn.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}

	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return nil, statusError(method, path, resp.StatusCode, b)
}

// statusError keeps the libpod message and classifies the status.
func statusError(method, path string, code int, body []byte) error {
	var payload struct {
		Cause    string `json:"cause"`
		Message  string `json:"message"`
		Response int    `json:"response"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}

	msg = fmt.Sprintf("%s %s failed (%d): %s", method, path, code, msg)
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, errdefs.ErrNotFound)
	case code == http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, errdefs.ErrConflict)
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "in use"), strings.Contains(msg, "already connected"):
		return fmt.Errorf("%s: %w", msg, errdefs.ErrAlreadyExists)
	case code >= 500:
		return fmt.Errorf("%s: %w", msg, errdefs.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %w", msg, errdefs.ErrInvalidArgument)
	}
}

// filters encodes a libpod filters query parameter.
func filters(f map[string][]string) url.Values {
	b, _ := json.Marshal(f)
	return url.Values{"filters": []string{string(b)}}
}
