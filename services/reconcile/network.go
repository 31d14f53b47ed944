package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/containerd/errdefs"
	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/rs/zerolog"
)

// NetworkManager owns the one network per stack.
type NetworkManager struct {
	backend backends.Backend
	log     zerolog.Logger
}

func NewNetworkManager(backend backends.Backend, log zerolog.Logger) *NetworkManager {
	return &NetworkManager{backend: backend, log: log}
}

// EnsureNetwork returns the stack network, creating it when absent. A failed
// create is followed by one more lookup in case a concurrent initializer won.
func (n *NetworkManager) EnsureNetwork(ctx context.Context, stack string) (models.NetworkHandle, error) {
	if err := services.ValidateStackName(stack); err != nil {
		return models.NetworkHandle{}, err
	}
	name := services.NetworkName(stack)

	existing, err := n.backend.LookupNetwork(ctx, name)
	if err != nil {
		return models.NetworkHandle{}, fmt.Errorf("lookup network %q: %w", name, err)
	}
	if existing != nil {
		return *existing, nil
	}

	labels := map[string]string{services.LabelStack: stack}
	createErr := n.backend.CreateNetwork(ctx, name, labels)
	if createErr == nil {
		n.log.Info().Str("network", name).Msg("created network")
	}

	existing, err = n.backend.LookupNetwork(ctx, name)
	if err != nil {
		return models.NetworkHandle{}, fmt.Errorf("lookup network %q: %w", name, err)
	}
	if existing == nil {
		if createErr != nil {
			return models.NetworkHandle{}, fmt.Errorf("create network %q: %w", name, createErr)
		}
		return models.NetworkHandle{}, fmt.Errorf("network %q not found after create", name)
	}
	return *existing, nil
}

// AttachToNetwork connects the container unless it is already a member.
func (n *NetworkManager) AttachToNetwork(ctx context.Context, network models.NetworkHandle, containerID string, aliases []string) error {
	member, err := n.backend.NetworkHasMember(ctx, network, containerID)
	if err != nil {
		return fmt.Errorf("inspect network %q: %w", network.Name, err)
	}
	if member {
		return nil
	}

	if err := n.backend.ConnectNetwork(ctx, network, containerID, slices.Clone(aliases)); err != nil {
		if isAlreadyAttached(err) {
			return nil
		}
		return fmt.Errorf("connect %s to network %q: %w", containerID, network.Name, err)
	}
	n.log.Debug().Str("network", network.Name).Str("container", containerID).Msg("attached to network")
	return nil
}

func isAlreadyAttached(err error) bool {
	return errdefs.IsAlreadyExists(err) ||
		errdefs.IsConflict(err) ||
		strings.Contains(err.Error(), "already exists")
}
