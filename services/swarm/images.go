package swarm

import (
	"context"
	"fmt"
	"io"

	"github.com/cenkalti/backoff/v5"
	"github.com/containerd/errdefs"

	"github.com/moby/moby/client"
)

// EnsureImage pulls the image when it is not present locally. A not-found
// from the registry is retried for the pull retry window, since images are
// often pushed moments before a deploy.
func (b *Backend) EnsureImage(ctx context.Context, ref string) error {
	_, err := b.client.ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image %q: %w", ref, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.pullInterval
	bo.MaxInterval = b.pullMaxInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := b.pull(ctx, ref)
		if err == nil {
			return struct{}{}, nil
		}
		if errdefs.IsNotFound(err) {
			b.log.Warn().Err(err).Str("image", ref).Msg("image not found; retrying")
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(b.pullRetryWindow))
	if err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	return nil
}

func (b *Backend) pull(ctx context.Context, ref string) error {
	rc, err := b.client.ImagePull(ctx, ref, client.ImagePullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return err
	}

	// Pull errors arrive inside the stream; confirm the image landed.
	if _, err := b.client.ImageInspect(ctx, ref); err != nil {
		return err
	}
	b.log.Info().Str("image", ref).Msg("pulled image")
	return nil
}
