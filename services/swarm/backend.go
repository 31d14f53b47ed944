package swarm

import (
	"context"
	"fmt"
	"time"

	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/rs/zerolog"

	"github.com/moby/moby/api/types/swarm"
	"github.com/moby/moby/client"
)

var _ backends.Backend = (*Backend)(nil)

const defaultListenAddr = "0.0.0.0:2377"

// Backend implements backends.Backend on Docker Engine in swarm mode. Each
// unit is a swarm service with a single task.
type Backend struct {
	client *client.Client
	log    zerolog.Logger

	pullRetryWindow time.Duration
	pullInterval    time.Duration
	pullMaxInterval time.Duration
}

type Options struct {
	// Engine address; DOCKER_HOST and friends apply when empty
	Host string
	// How long a missing image (404 from the registry) is retried
	PullRetryWindow time.Duration
	Logger          zerolog.Logger
}

// New connects using the environment (DOCKER_HOST etc.) and API version
// negotiation. opts.Host, when set, overrides the environment's host.
func New(opts Options) (*Backend, error) {
	clientOpts := []client.Opt{client.FromEnv}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(opts.Host))
	}
	c, err := client.New(clientOpts...)
	if err != nil {
		return nil, err
	}

	if opts.PullRetryWindow <= 0 {
		opts.PullRetryWindow = models.DefaultPullRetryWindow
	}

	return &Backend{
		client:          c,
		log:             opts.Logger,
		pullRetryWindow: opts.PullRetryWindow,
		pullInterval:    time.Second,
		pullMaxInterval: 15 * time.Second,
	}, nil
}

func (b *Backend) Name() string { return models.BackendSwarm }

// Initialise puts the node in swarm mode when it is not part of a swarm yet.
func (b *Backend) Initialise(ctx context.Context) error {
	info, err := b.client.Info(ctx, client.InfoOptions{})
	if err != nil {
		return fmt.Errorf("docker info: %w", err)
	}

	state := info.Info.Swarm.LocalNodeState
	switch state {
	case swarm.LocalNodeStateActive:
		return nil
	case swarm.LocalNodeStateInactive, swarm.LocalNodeStatePending:
		b.log.Info().Str("state", string(state)).Msg("initialising swarm")
		if _, err := b.client.SwarmInit(ctx, client.SwarmInitOptions{
			ListenAddr: defaultListenAddr,
		}); err != nil {
			return fmt.Errorf("swarm init: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("swarm node is in state %q: %s", state, info.Info.Swarm.Error)
	}
}

func (b *Backend) Close() error {
	return b.client.Close()
}
