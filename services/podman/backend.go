package podman

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/containerd/errdefs"
	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/rs/zerolog"
)

var _ backends.Backend = (*Backend)(nil)

// Backend implements backends.Backend on a local podman service. Each unit is
// a pod named <unit>_pod holding one container named <unit>.
type Backend struct {
	api *apiClient
	log zerolog.Logger

	pullRetryWindow time.Duration
}

type Options struct {
	PullRetryWindow time.Duration
	Logger          zerolog.Logger
}

func New(conn *Connection, opts Options) (*Backend, error) {
	api, err := newAPIClient(conn)
	if err != nil {
		return nil, err
	}
	if opts.PullRetryWindow <= 0 {
		opts.PullRetryWindow = models.DefaultPullRetryWindow
	}
	return &Backend{api: api, log: opts.Logger, pullRetryWindow: opts.PullRetryWindow}, nil
}

func (b *Backend) Name() string { return models.BackendPodman }

// Initialise checks the service answers.
func (b *Backend) Initialise(ctx context.Context) error {
	if err := b.api.do(ctx, http.MethodGet, "/libpod/_ping", nil, nil, nil); err != nil {
		return fmt.Errorf("ping podman at %s: %w", b.api.conn.Endpoint, err)
	}
	return nil
}

func (b *Backend) imageExists(ctx context.Context, image string) (bool, error) {
	err := b.api.do(ctx, http.MethodGet, "/libpod/images/"+image+"/exists", nil, nil, nil)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// EnsureImage pulls the image when absent, retrying registry not-found errors
// for the pull retry window.
func (b *Backend) EnsureImage(ctx context.Context, ref string) error {
	image := normaliseImage(ref)

	exists, err := b.imageExists(ctx, image)
	if err != nil {
		return fmt.Errorf("inspect image %q: %w", image, err)
	}
	if exists {
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 15 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := b.pull(ctx, image)
		if err == nil {
			return struct{}{}, nil
		}
		if errdefs.IsNotFound(err) {
			b.log.Warn().Err(err).Str("image", image).Msg("image not found; retrying")
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(b.pullRetryWindow))
	if err != nil {
		return fmt.Errorf("pull image %q: %w", image, err)
	}
	return nil
}

type pullReport struct {
	Stream string   `json:"stream,omitempty"`
	Error  string   `json:"error,omitempty"`
	Images []string `json:"images,omitempty"`
	ID     string   `json:"id,omitempty"`
}

func (b *Backend) pull(ctx context.Context, image string) error {
	query := url.Values{"reference": []string{image}, "quiet": []string{"true"}}
	resp, err := b.api.send(ctx, b.api.stream, http.MethodPost, "/libpod/images/pull", query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Errors arrive inside the progress stream with a 200 status.
	dec := json.NewDecoder(resp.Body)
	for {
		var report pullReport
		if err := dec.Decode(&report); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read pull progress: %w", err)
		}
		if report.Error != "" {
			if isMissingImage(report.Error) {
				return fmt.Errorf("%s: %w", report.Error, errdefs.ErrNotFound)
			}
			return errors.New(report.Error)
		}
	}

	exists, err := b.imageExists(ctx, image)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("image %q missing after pull: %w", image, errdefs.ErrNotFound)
	}
	b.log.Info().Str("image", image).Msg("pulled image")
	return nil
}

func isMissingImage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "manifest unknown") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "404")
}
